package esplora

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
)

func (e *esplora) getTipHeight(ctx context.Context) (uint64, error) {
	resp, err := e.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(resp), 10, 64)
}

func (e *esplora) getTipHash(ctx context.Context) (string, error) {
	resp, err := e.get(ctx, "/blocks/tip/hash")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

type blockInfo struct {
	ID     string `json:"id"`
	Height uint64 `json:"height"`
}

// getTip resolves the height from the tip hash so that both refer to the
// same block.
func (e *esplora) getTip(ctx context.Context) (domain.TipEvent, error) {
	hash, err := e.getTipHash(ctx)
	if err != nil {
		return domain.TipEvent{}, err
	}
	resp, err := e.get(ctx, fmt.Sprintf("/block/%s", hash))
	if err != nil {
		return domain.TipEvent{}, err
	}
	var block blockInfo
	if err := json.Unmarshal([]byte(resp), &block); err != nil {
		return domain.TipEvent{}, err
	}
	return domain.TipEvent{Height: block.Height, Hash: hash}, nil
}

// FollowTip polls the tip of the chain. A new block is published as an
// apply event, a tip at the same or a lower height with a different hash
// as a reset one. The subscription ends at the first failing poll.
func (e *esplora) FollowTip(ctx context.Context) (*domain.TipSubscription, error) {
	tip, err := e.getTip(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := domain.NewTipSubscription(cancel)
	go e.pollTip(ctx, sub, tip)
	return sub, nil
}

func (e *esplora) pollTip(
	ctx context.Context, sub *domain.TipSubscription, last domain.TipEvent,
) {
	defer sub.Close()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sub.Finish(ctx.Err())
			return
		case <-ticker.C:
		}

		tip, err := e.getTip(ctx)
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			log.WithError(err).Debug("esplora tip polling stopped")
			sub.Finish(err)
			return
		}
		if tip.Hash == last.Hash {
			continue
		}

		tip.Action = domain.TipActionApply
		if tip.Height <= last.Height {
			tip.Action = domain.TipActionReset
		}
		if !sub.Publish(ctx, tip) {
			sub.Finish(ctx.Err())
			return
		}
		last = tip
	}
}
