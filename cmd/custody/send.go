package main

import (
	"context"
	"fmt"

	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var send = cli.Command{
	Name:  "send",
	Usage: "send coins from an account to an address",
	Flags: []cli.Flag{
		walletFlag,
		passwordFlag,
		pinFlag,
		accountFlag,
		&cli.StringFlag{
			Name:     "to",
			Usage:    "the address of the receiver",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "amount",
			Usage:    "the amount to send, in ADA or BTC",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "dry_run",
			Usage: "only build the transaction and print its summary",
		},
	},
	Action: sendAction,
}

func sendAction(c *cli.Context) error {
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

	amount, err := parseAmount(w.ActiveChain, c.String("amount"))
	if err != nil {
		return err
	}
	req := domain.TxRequest{
		Outputs: []domain.TxOutput{{Address: c.String("to"), Amount: amount}},
	}
	accountIndex := getAccountIndex(c, w)

	if c.Bool("dry_run") {
		unsigned, err := svc.wallet.PrepareSend(ctx, w.ID, accountIndex, req)
		if err != nil {
			return err
		}
		printJSON(c.App.Writer, unsigned.Summary)
		return nil
	}

	txid, err := svc.wallet.Send(ctx, w.ID, accountIndex, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "txid:", txid)
	return nil
}
