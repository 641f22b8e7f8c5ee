package main

import (
	"context"
	"fmt"

	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var balance = cli.Command{
	Name:  "balance",
	Usage: "get the balance of an account, or of the whole wallet",
	Flags: []cli.Flag{
		walletFlag,
		passwordFlag,
		pinFlag,
		accountFlag,
		&cli.BoolFlag{
			Name:  "all",
			Usage: "sum up the balances of all accounts",
		},
	},
	Action: balanceAction,
}

var utxos = cli.Command{
	Name:  "utxos",
	Usage: "list the unspents of an account, or of the whole wallet",
	Flags: []cli.Flag{
		walletFlag,
		passwordFlag,
		pinFlag,
		accountFlag,
		&cli.BoolFlag{
			Name:  "all",
			Usage: "list the unspents of all accounts",
		},
	},
	Action: utxosAction,
}

func balanceAction(c *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	w, err := unlockWallet(ctx, c, svc)
	if err != nil {
		return err
	}

	var (
		total  uint64
		assets []domain.Asset
	)
	if c.Bool("all") {
		utxos, err := svc.wallet.GetAllUtxos(ctx, w.ID)
		if err != nil {
			return err
		}
		total, assets = domain.TotalValue(utxos), domain.AggregateAssets(utxos)
	} else {
		utxos, err := svc.wallet.GetUtxos(ctx, w.ID, getAccountIndex(c, w))
		if err != nil {
			return err
		}
		total, assets = domain.TotalValue(utxos), domain.AggregateAssets(utxos)
	}

	out := c.App.Writer
	fmt.Fprintln(out, "balance:", formatAmount(w.ActiveChain, total))
	for _, a := range assets {
		fmt.Fprintf(out, "%s: %d\n", a.Unit(), a.Quantity)
	}
	return nil
}

func utxosAction(c *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	w, err := unlockWallet(ctx, c, svc)
	if err != nil {
		return err
	}

	var utxos []domain.Utxo
	if c.Bool("all") {
		utxos, err = svc.wallet.GetAllUtxos(ctx, w.ID)
	} else {
		utxos, err = svc.wallet.GetUtxos(ctx, w.ID, getAccountIndex(c, w))
	}
	if err != nil {
		return err
	}

	printJSON(c.App.Writer, utxos)
	return nil
}
