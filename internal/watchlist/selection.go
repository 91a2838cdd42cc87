package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trogers1052/stock-watchlist/internal/logging"
)

// ErrSaveInProgress is returned when Save is called while a save is running
var ErrSaveInProgress = errors.New("save already in progress")

// Set is a set of stock ids
type Set map[int64]struct{}

// NewSet returns a Set holding ids
func NewSet(ids ...int64) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Toggle adds id if absent, removes it if present, and reports whether it is
// now selected
func (s Set) Toggle(id int64) bool {
	if _, ok := s[id]; ok {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports whether id is selected
func (s Set) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of selected ids
func (s Set) Len() int { return len(s) }

// IDs returns the selected ids in ascending order
func (s Set) IDs() []int64 {
	return slices.Sorted(maps.Keys(s))
}

// SelectionStore replaces a user's persisted selections
type SelectionStore interface {
	ReplaceUserStocks(ctx context.Context, userID int64, stockIDs []int64) error
}

// EventPublisher announces saved selections
type EventPublisher interface {
	PublishSelectionsSaved(ctx context.Context, userID int64, stockIDs []int64) error
}

// Reconciler owns one user's pending selection and writes it back on Save
type Reconciler struct {
	userID    int64
	store     SelectionStore
	publisher EventPublisher
	logger    *slog.Logger

	mu     sync.Mutex
	set    Set
	saving atomic.Bool
}

// NewReconciler creates a Reconciler seeded with the persisted selection.
// publisher may be nil.
func NewReconciler(userID int64, initial []int64, store SelectionStore, publisher EventPublisher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		userID:    userID,
		store:     store,
		publisher: publisher,
		logger:    logging.OrDefault(logger),
		set:       NewSet(initial...),
	}
}

// UserID returns the user the reconciler belongs to
func (r *Reconciler) UserID() int64 { return r.userID }

// Toggle flips id in the pending selection and reports whether it is now
// selected
func (r *Reconciler) Toggle(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Toggle(id)
}

// Selected returns the pending selection in ascending id order
func (r *Reconciler) Selected() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.IDs()
}

// Replace overwrites the pending selection
func (r *Reconciler) Replace(ids []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = NewSet(ids...)
}

// Save bounds for the store write and the follow-up event
const (
	SaveTimeout    = 30 * time.Second
	PublishTimeout = 5 * time.Second
)

// Save persists the pending selection so the stored rows equal it exactly.
// Once started the write runs to completion or failure even if ctx is
// cancelled. The pending selection is kept whether or not the save succeeds.
// The saved event is published in the background after Save returns.
func (r *Reconciler) Save(ctx context.Context) error {
	ids, err := r.persist(ctx)
	if err != nil {
		return err
	}
	r.publish(ctx, ids)
	return nil
}

func (r *Reconciler) persist(ctx context.Context) ([]int64, error) {
	if !r.saving.CompareAndSwap(false, true) {
		return nil, ErrSaveInProgress
	}
	defer r.saving.Store(false)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SaveTimeout)
	defer cancel()

	ids := r.Selected()
	if err := r.store.ReplaceUserStocks(ctx, r.userID, ids); err != nil {
		r.logger.Error("failed to save selections", "user_id", r.userID, "error", err)
		return nil, fmt.Errorf("failed to save selections: %w", err)
	}

	r.logger.Info("saved selections", "user_id", r.userID, "count", len(ids))
	return ids, nil
}

func (r *Reconciler) publish(ctx context.Context, ids []int64) {
	if r.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	go func() {
		defer cancel()
		if err := r.publisher.PublishSelectionsSaved(ctx, r.userID, ids); err != nil {
			r.logger.Warn("failed to publish selections event", "user_id", r.userID, "error", err)
		}
	}()
}
