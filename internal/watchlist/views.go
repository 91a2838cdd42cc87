package watchlist

import (
	"errors"
	"sync"
)

// ErrUnknownStock is returned when toggling an id that is not in the catalog
// the view was opened with
var ErrUnknownStock = errors.New("stock not in catalog")

// ErrNoView is returned when a user has no open select view
var ErrNoView = errors.New("no open select view")

// View is one user's open select view
type View struct {
	*Reconciler
	catalog map[int64]struct{}
}

// Toggle flips id, rejecting ids outside the view's catalog
func (v *View) Toggle(id int64) (bool, error) {
	if _, ok := v.catalog[id]; !ok {
		return false, ErrUnknownStock
	}
	return v.Reconciler.Toggle(id), nil
}

// Views tracks open select views keyed by email
type Views struct {
	mu    sync.Mutex
	views map[string]*View
}

// NewViews creates an empty registry
func NewViews() *Views {
	return &Views{views: make(map[string]*View)}
}

// Open registers a view for email, replacing any earlier one
func (v *Views) Open(email string, r *Reconciler, catalogIDs []int64) *View {
	view := &View{Reconciler: r, catalog: make(map[int64]struct{}, len(catalogIDs))}
	for _, id := range catalogIDs {
		view.catalog[id] = struct{}{}
	}

	v.mu.Lock()
	v.views[email] = view
	v.mu.Unlock()
	return view
}

// Get returns the open view for email
func (v *Views) Get(email string) (*View, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	view, ok := v.views[email]
	if !ok {
		return nil, ErrNoView
	}
	return view, nil
}

// Close discards the view for email
func (v *Views) Close(email string) {
	v.mu.Lock()
	delete(v.views, email)
	v.mu.Unlock()
}

// Len returns the number of open views
func (v *Views) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.views)
}
