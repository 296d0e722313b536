package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLocaleContext(target, acceptLanguage string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	if acceptLanguage != "" {
		c.Request.Header.Set("Accept-Language", acceptLanguage)
	}
	return c
}

func TestResolveLocale(t *testing.T) {
	cases := []struct {
		target string
		header string
		want   string
	}{
		{"/", "", LocaleEnUS},
		{"/", "vi-VN,vi;q=0.9,en;q=0.8", LocaleViVN},
		{"/", "fr-FR, en-GB;q=0.7", LocaleEnUS},
		{"/?lang=vi", "en-US", LocaleViVN},
		{"/?lang=de", "vi", LocaleViVN},
	}
	for _, tc := range cases {
		if got := ResolveLocale(newLocaleContext(tc.target, tc.header)); got != tc.want {
			t.Fatalf("ResolveLocale(%s, %q) want %s got %s", tc.target, tc.header, tc.want, got)
		}
	}
	if got := ResolveLocale(nil); got != DefaultLocale {
		t.Fatalf("nil context want default got %s", got)
	}
}

func TestTranslateFallback(t *testing.T) {
	if got := T(LocaleViVN, "error.booking_not_found"); got == "" || got == "error.booking_not_found" {
		t.Fatalf("vi-VN message missing: %q", got)
	}
	if got := T("ja-JP", "error.booking_not_found"); got != messages[DefaultLocale]["error.booking_not_found"] {
		t.Fatalf("unknown locale should fall back to default, got %q", got)
	}
	if got := T(LocaleEnUS, "error.no_such_key"); got != "error.no_such_key" {
		t.Fatalf("missing key should echo key, got %q", got)
	}
	if got := Sprintf(LocaleEnUS, "error.rate_limited", 30); got == messages[LocaleEnUS]["error.rate_limited"] {
		t.Fatalf("rate limit placeholder not filled: %q", got)
	}
}

func TestLocalesShareKeys(t *testing.T) {
	en, vi := messages[LocaleEnUS], messages[LocaleViVN]
	for key := range en {
		if _, ok := vi[key]; !ok {
			t.Fatalf("vi-VN missing key %s", key)
		}
	}
	for key := range vi {
		if _, ok := en[key]; !ok {
			t.Fatalf("en-US missing key %s", key)
		}
	}
}
