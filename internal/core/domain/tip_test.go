package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/custody/internal/core/domain"
)

func TestTipSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := domain.NewTipSubscription(cancel)

	go func() {
		sub.Publish(ctx, domain.TipEvent{Action: domain.TipActionApply, Slot: 1})
		sub.Publish(ctx, domain.TipEvent{Action: domain.TipActionUndo, Slot: 1})
		sub.Finish(errors.New("stream broken"))
		sub.Finish(nil)
	}()

	events := make([]domain.TipEvent, 0)
	for ev := range sub.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	require.Equal(t, domain.TipActionUndo, events[1].Action)
	require.EqualError(t, sub.Err(), "stream broken")

	sub.Close()
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	// Nobody reads from an abandoned subscription: publishing gives up once
	// the context is done.
	other := domain.NewTipSubscription(nil)
	require.False(t, other.Publish(ctx, domain.TipEvent{}))
	other.Close()
}
