// Package tracker maps a delivery's status to the single legal driver
// action and issues the transition through the gateway client.
package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/yitethio/liyt-driver/internal/apperr"
	"github.com/yitethio/liyt-driver/internal/domain"
	"github.com/yitethio/liyt-driver/internal/logx"
	"github.com/yitethio/liyt-driver/internal/state"
)

// Action is the button the UI should render for a delivery.
type Action struct {
	Label      string
	Transition domain.Transition
}

type gateway interface {
	Transition(ctx context.Context, id int64, tr domain.Transition) (domain.Delivery, error)
}

// Tracker drives the delivery lifecycle.
type Tracker struct {
	gw     gateway
	state  *state.Deliveries
	logger logx.Logger

	mu       sync.Mutex
	inFlight map[int64]bool
}

// New creates a Tracker; gw and st must not be nil.
func New(gw gateway, st *state.Deliveries, logger logx.Logger) *Tracker {
	if gw == nil || st == nil {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Tracker{
		gw:       gw,
		state:    st,
		logger:   logger,
		inFlight: make(map[int64]bool),
	}
}

// NextAction returns the action available for the delivery. Terminal
// statuses have none.
func NextAction(d domain.Delivery) (Action, bool) {
	tr, ok := d.Status.NextTransition()
	if !ok {
		return Action{}, false
	}
	return Action{Label: tr.Label(), Transition: tr}, true
}

// Apply issues the transition for the delivery and installs the
// server's authoritative record into application state. While a
// transition for the same delivery is outstanding, further calls fail
// with apperr.ErrTransitionInFlight; local state never changes before
// the server confirms.
func (t *Tracker) Apply(ctx context.Context, deliveryID int64, tr domain.Transition) (domain.Delivery, error) {
	if !t.acquire(deliveryID) {
		return domain.Delivery{}, fmt.Errorf("delivery %d: %w", deliveryID, apperr.ErrTransitionInFlight)
	}
	defer t.release(deliveryID)

	updated, err := t.gw.Transition(ctx, deliveryID, tr)
	if err != nil {
		return domain.Delivery{}, err
	}

	t.state.Apply(updated)
	t.logger.Info("delivery transition applied",
		logx.String("event", "delivery_transition"),
		logx.Int64("delivery_id", updated.ID),
		logx.String("transition", string(tr)),
		logx.String("status", string(updated.Status)),
	)
	return updated, nil
}

// Advance applies the delivery's next legal transition. Terminal
// deliveries fail with apperr.ErrInvalid.
func (t *Tracker) Advance(ctx context.Context, d domain.Delivery) (domain.Delivery, error) {
	action, ok := NextAction(d)
	if !ok {
		return domain.Delivery{}, fmt.Errorf("delivery %d has no available action: %w", d.ID, apperr.ErrInvalid)
	}
	return t.Apply(ctx, d.ID, action.Transition)
}

func (t *Tracker) acquire(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight[id] {
		return false
	}
	t.inFlight[id] = true
	return true
}

func (t *Tracker) release(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, id)
}
