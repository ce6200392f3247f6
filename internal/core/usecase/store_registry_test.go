package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
)

func TestRegistryHidesStoresOfOtherUsers(t *testing.T) {
	gw := newGatewayFake(draftSession())
	registry := NewStoreRegistry(StoreDeps{Gateway: gw, Resolver: testResolver(), Invoker: &invokerFake{}, Logger: testLogger()})

	if _, err := registry.Open(userCtx(), "session-1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	other := domain.WithUserID(context.Background(), "user-2")
	if _, err := registry.Open(other, "session-1"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
	if _, err := registry.Open(context.Background(), "session-1"); !domain.IsKind(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRegistryStartAsyncRunsInBackground(t *testing.T) {
	session := draftSession()
	session.SelectedDocuments = []domain.DocumentRef{{ID: "doc-1"}}
	gw := newGatewayFake(session)
	release := make(chan struct{})
	inv := &invokerFake{
		startResult: &ports.QuestionsResult{Questions: []domain.Question{{ID: "q1"}}},
		during:      func() { <-release },
	}
	registry := NewStoreRegistry(StoreDeps{Gateway: gw, Resolver: testResolver(), Invoker: inv, Progress: testSimulator(newManualTicker()), Logger: testLogger()})

	ctx, cancel := context.WithCancel(userCtx())
	if err := registry.StartAsync(ctx, "session-1"); err != nil {
		t.Fatalf("StartAsync() error = %v", err)
	}
	cancel()

	store, err := registry.Open(userCtx(), "session-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !store.Snapshot().Busy {
		t.Fatalf("expected store to be busy while the attempt runs")
	}
	if err := registry.StartAsync(userCtx(), "session-1"); !domain.IsKind(err, domain.ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}

	close(release)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := registry.Wait(waitCtx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := store.Snapshot().Step; got != domain.StepQuestions {
		t.Fatalf("expected step %s after background start, got %s", domain.StepQuestions, got)
	}
}

func TestRegistryAnalyzeAsyncRejectsWrongStep(t *testing.T) {
	registry := NewStoreRegistry(StoreDeps{Gateway: newGatewayFake(draftSession()), Resolver: testResolver(), Invoker: &invokerFake{analyzeResult: json.RawMessage(`{}`)}, Logger: testLogger()})
	if err := registry.AnalyzeAsync(userCtx(), "session-1"); !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistryEvictsIdleStores(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	session := draftSession()
	session.SelectedDocuments = []domain.DocumentRef{{ID: "doc-1"}}
	gw := newGatewayFake(session)
	release := make(chan struct{})
	inv := &invokerFake{
		startResult: &ports.QuestionsResult{Questions: []domain.Question{{ID: "q1"}}},
		during:      func() { <-release },
	}
	registry := NewStoreRegistry(StoreDeps{
		Gateway:  gw,
		Resolver: testResolver(),
		Invoker:  inv,
		Progress: testSimulator(newManualTicker()),
		Logger:   testLogger(),
		Now:      clock.Now,
		IdleTTL:  10 * time.Minute,
	})

	first, err := registry.Open(userCtx(), "session-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := registry.StartAsync(userCtx(), "session-1"); err != nil {
		t.Fatalf("StartAsync() error = %v", err)
	}

	clock.Advance(time.Hour)
	busy, err := registry.Open(userCtx(), "session-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if busy != first {
		t.Fatalf("busy store must not be evicted")
	}

	close(release)
	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.Wait(waitCtx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	clock.Advance(5 * time.Minute)
	if _, err := registry.Open(userCtx(), "session-1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if registry.Len() != 1 {
		t.Fatalf("expected recently used store to stay, got %d", registry.Len())
	}

	clock.Advance(11 * time.Minute)
	reopened, err := registry.Open(userCtx(), "session-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if reopened == first {
		t.Fatalf("expected idle store to be evicted and hydrated again")
	}
	if got := reopened.Snapshot().Step; got != domain.StepQuestions {
		t.Fatalf("expected hydrated step %s, got %s", domain.StepQuestions, got)
	}
}
