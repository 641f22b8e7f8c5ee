package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tdex-network/custody/config"
	"github.com/urfave/cli/v2"
)

var followtip = cli.Command{
	Name:  "follow-tip",
	Usage: "print the blocks applied to and rolled back from the chain tip",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "count",
			Usage: "stop after the given number of events, 0 means never",
		},
	},
	Action: followTipAction,
}

func followTipAction(c *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	sub, err := svc.wallet.FollowTip(ctx, config.GetChainInfo())
	if err != nil {
		return err
	}
	defer sub.Close()

	count, limit := 0, c.Int("count")
	stopped := false
	for ev := range sub.Events() {
		if stopped {
			continue
		}
		fmt.Fprintf(
			c.App.Writer, "%s\theight %d\tslot %d\t%s\n",
			ev.Action, ev.Height, ev.Slot, ev.Hash,
		)
		count++
		if limit > 0 && count >= limit {
			stopped = true
			sub.Close()
		}
	}

	if err := sub.Err(); err != nil && !stopped && ctx.Err() == nil {
		return err
	}
	return nil
}
