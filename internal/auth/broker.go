package auth

import "sync"

// State is an auth-state change delivered to subscribers
type State struct {
	Email    string `json:"email"`
	SignedIn bool   `json:"signed_in"`
}

// StateBroker fans auth-state changes out to the views a user has open
type StateBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan State
}

// NewStateBroker creates an empty broker
func NewStateBroker() *StateBroker {
	return &StateBroker{subs: make(map[string]map[int]chan State)}
}

// Subscribe registers for changes to email's state. The returned function
// must be called when the subscriber goes away; it is safe to call twice.
func (b *StateBroker) Subscribe(email string) (<-chan State, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan State, 1)
	if b.subs[email] == nil {
		b.subs[email] = make(map[int]chan State)
	}
	b.subs[email][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[email], id)
			if len(b.subs[email]) == 0 {
				delete(b.subs, email)
			}
		})
	}
}

// Publish delivers s to every subscriber of s.Email. A subscriber that has
// not drained its previous state only keeps the newest one.
func (b *StateBroker) Publish(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[s.Email] {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

// Subscribers returns the number of live subscriptions for email
func (b *StateBroker) Subscribers(email string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[email])
}
