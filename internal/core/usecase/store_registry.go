package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

// StoreRegistry keeps one AssessmentStore per session id and runs long
// actions in tracked background goroutines. Stores that are neither busy nor
// used for IdleTTL are dropped and hydrated again on the next Open.
type StoreRegistry struct {
	deps StoreDeps

	mu     sync.Mutex
	stores map[string]*registryEntry
	wg     sync.WaitGroup
}

type registryEntry struct {
	store    *AssessmentStore
	lastUsed time.Time
}

func NewStoreRegistry(deps StoreDeps) *StoreRegistry {
	return &StoreRegistry{
		deps:   deps.withDefaults(),
		stores: make(map[string]*registryEntry),
	}
}

// Create resumes or creates a draft session for the company and returns its
// store.
func (r *StoreRegistry) Create(ctx context.Context, companyID, companyName string) (*AssessmentStore, error) {
	sessionID, err := r.deps.Gateway.FetchOrCreateSession(ctx, companyID, companyName)
	if err != nil {
		return nil, err
	}
	return r.Open(ctx, sessionID)
}

// Open returns the store for sessionID, hydrating it from the gateway when it
// is not held in memory. Stores owned by another identity are reported as
// not found.
func (r *StoreRegistry) Open(ctx context.Context, sessionID string) (*AssessmentStore, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("open assessment: %w", err)
	}

	r.mu.Lock()
	now := r.deps.Now()
	r.evictIdleLocked(now)
	entry, ok := r.stores[sessionID]
	if ok {
		entry.lastUsed = now
	}
	r.mu.Unlock()
	if ok {
		if !entry.store.OwnedBy(userID) {
			return nil, domain.WrapError(domain.ErrNotFound, "open assessment", fmt.Errorf("id=%s", sessionID))
		}
		return entry.store, nil
	}

	fresh := NewAssessmentStore(r.deps)
	if err := fresh.Load(ctx, sessionID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.stores[sessionID]; ok {
		existing.lastUsed = r.deps.Now()
		return existing.store, nil
	}
	r.stores[sessionID] = &registryEntry{store: fresh, lastUsed: r.deps.Now()}
	return fresh, nil
}

// Forget drops the in-memory store, e.g. after the session was deleted.
func (r *StoreRegistry) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.stores, sessionID)
	r.mu.Unlock()
}

// Len reports how many stores are held in memory.
func (r *StoreRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *StoreRegistry) evictIdleLocked(now time.Time) {
	for id, entry := range r.stores {
		if now.Sub(entry.lastUsed) < r.deps.IdleTTL || entry.store.isRunning() {
			continue
		}
		delete(r.stores, id)
		r.deps.Logger.Debug("assessment_store_evicted", "session_id", id)
	}
}

// StartAsync validates and dispatches question generation. Validation errors
// are returned synchronously; the remote work continues after ctx ends.
func (r *StoreRegistry) StartAsync(ctx context.Context, sessionID string) error {
	store, err := r.Open(ctx, sessionID)
	if err != nil {
		return err
	}
	run, err := store.beginStart()
	if err != nil {
		return err
	}
	r.goTracked(ctx, sessionID, "start", run)
	return nil
}

// AnalyzeAsync validates and dispatches the final analysis.
func (r *StoreRegistry) AnalyzeAsync(ctx context.Context, sessionID string) error {
	store, err := r.Open(ctx, sessionID)
	if err != nil {
		return err
	}
	run, err := store.beginAnalyze()
	if err != nil {
		return err
	}
	r.goTracked(ctx, sessionID, "analyze", run)
	return nil
}

func (r *StoreRegistry) goTracked(ctx context.Context, sessionID, action string, run func(context.Context) error) {
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := run(bg); err != nil {
			r.deps.Logger.Warn("assessment_action_failed", "session_id", sessionID, "action", action, "error", err)
		}
	}()
}

// Wait blocks until all background actions have finished or ctx is done.
func (r *StoreRegistry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
