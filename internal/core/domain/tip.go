package domain

import (
	"context"
	"sync"
)

// TipAction tells how a block changes the tip of the chain.
type TipAction string

const (
	TipActionApply TipAction = "apply"
	TipActionUndo  TipAction = "undo"
	TipActionReset TipAction = "reset"
)

// TipEvent ...
type TipEvent struct {
	Action TipAction `json:"action"`
	Slot   uint64    `json:"slot"`
	Hash   string    `json:"hash"`
	Height uint64    `json:"height"`
}

// TipSubscription is the consumer side of a tip stream. Events is closed
// exactly once when the stream ends, after which Err returns the reason, nil
// for a clean end.
type TipSubscription struct {
	events chan TipEvent
	cancel context.CancelFunc

	lock   sync.Mutex
	err    error
	closed bool
}

// NewTipSubscription returns a subscription whose Close calls cancel.
func NewTipSubscription(cancel context.CancelFunc) *TipSubscription {
	return &TipSubscription{
		events: make(chan TipEvent),
		cancel: cancel,
	}
}

// Events ...
func (s *TipSubscription) Events() <-chan TipEvent {
	return s.events
}

// Err returns the error that terminated the stream, if any.
func (s *TipSubscription) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

// Close cancels the underlying stream. Events is closed by the producer
// shortly after.
func (s *TipSubscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Publish delivers ev to the consumer. It returns false if ctx is done first.
func (s *TipSubscription) Publish(ctx context.Context, ev TipEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Finish records err and closes the events channel. Only the producer calls
// it; calls after the first are ignored.
func (s *TipSubscription) Finish(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.events)
}
