package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tourbook-next/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	block    bool

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func newFakeService(name string, block bool, startErr error) *fakeService {
	return &fakeService{name: name, block: block, startErr: startErr, done: make(chan struct{})}
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if !s.block {
		return s.startErr
	}
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return nil
}

func (s *fakeService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.done)
	}
	return nil
}

func (s *fakeService) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRunnerStopsAllWhenOneServiceFails(t *testing.T) {
	api := newFakeService("http", true, nil)
	broken := newFakeService("worker", false, errors.New("redis unreachable"))

	err := NewRunner(api, broken).Run(context.Background(), time.Second, nil)
	if err == nil || !errors.Is(err, broken.startErr) {
		t.Fatalf("expected worker start error, got %v", err)
	}
	if !api.isStopped() || !broken.isStopped() {
		t.Fatalf("all services should be stopped")
	}
}

func TestRunnerReturnsNilOnCancel(t *testing.T) {
	api := newFakeService("http", true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	if err := NewRunner(api).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancel should end run cleanly, got %v", err)
	}
	if !api.isStopped() {
		t.Fatalf("service should be stopped after cancel")
	}
}

func TestBuildRunnerRejectsBadInput(t *testing.T) {
	if _, err := BuildRunner(nil, ModeAll); err == nil {
		t.Fatalf("nil config should fail")
	}
	if _, err := BuildRunner(&config.Config{}, "cron"); err == nil {
		t.Fatalf("unknown mode should fail")
	}
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("empty runner should fail")
	}
}
