package repository

import (
	"testing"
)

func TestBuildKeywordConditionByDialect(t *testing.T) {
	condition, argCount := buildKeywordConditionByDialect("sqlite", []string{"txn_ref", " ", "provider_txn_no"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	want := `txn_ref LIKE ? ESCAPE '\' OR provider_txn_no LIKE ? ESCAPE '\'`
	if condition != want {
		t.Fatalf("sqlite condition mismatch, want %s got %s", want, condition)
	}

	condition, _ = buildKeywordConditionByDialect("postgres", []string{"txn_ref"})
	if condition != `txn_ref ILIKE ? ESCAPE '\'` {
		t.Fatalf("postgres condition mismatch, got %s", condition)
	}
	if _, count := buildKeywordCondition(nil, nil); count != 0 {
		t.Fatalf("empty columns want 0 args got %d", count)
	}
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	if got := containsPattern("TB12_3%"); got != `%TB12\_3\%%` {
		t.Fatalf("pattern mismatch, got %s", got)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}
