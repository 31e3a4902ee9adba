// Package state holds the driver's in-memory application state. It is
// written only from successful server responses; nothing here mutates
// speculatively.
package state

import (
	"sync"

	"github.com/yitethio/liyt-driver/internal/domain"
)

// Deliveries is the delivery collection plus the delivery currently
// open in the UI.
type Deliveries struct {
	mu      sync.RWMutex
	order   []int64
	byID    map[int64]domain.Delivery
	current *int64
}

// NewDeliveries returns empty delivery state.
func NewDeliveries() *Deliveries {
	return &Deliveries{byID: make(map[int64]domain.Delivery)}
}

// ReplaceAll installs a freshly fetched list, keeping server order.
func (s *Deliveries) ReplaceAll(list []domain.Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.byID = make(map[int64]domain.Delivery, len(list))
	for _, d := range list {
		s.order = append(s.order, d.ID)
		s.byID[d.ID] = d
	}
}

// Apply installs the server's updated record for one delivery: the
// list entry is replaced in place when present, and the record becomes
// the current delivery.
func (s *Deliveries) Apply(d domain.Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[d.ID]; !ok {
		s.order = append(s.order, d.ID)
	}
	s.byID[d.ID] = d
	id := d.ID
	s.current = &id
}

// Get returns one delivery by id.
func (s *Deliveries) Get(id int64) (domain.Delivery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	return d, ok
}

// List returns the deliveries in list order.
func (s *Deliveries) List() []domain.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Delivery, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Current returns the delivery open in the UI, if any.
func (s *Deliveries) Current() (domain.Delivery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Delivery{}, false
	}
	d, ok := s.byID[*s.current]
	return d, ok
}

// ClearCurrent forgets the current delivery.
func (s *Deliveries) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
