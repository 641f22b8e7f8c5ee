package main

import (
	"context"
	"fmt"

	"github.com/tdex-network/custody/config"
	"github.com/urfave/cli/v2"
)

var accounts = cli.Command{
	Name:   "accounts",
	Usage:  "list the accounts of the wallet",
	Flags:  []cli.Flag{walletFlag},
	Action: accountsAction,
}

var newaccount = cli.Command{
	Name:  "new-account",
	Usage: "derive a new account of the wallet",
	Flags: []cli.Flag{
		walletFlag,
		passwordFlag,
		pinFlag,
		&cli.StringFlag{
			Name:  "name",
			Usage: "the name of the account",
		},
		&cli.UintFlag{
			Name:  "index",
			Usage: "the index of the account, defaults to the next free one",
		},
	},
	Action: newAccountAction,
}

var discover = cli.Command{
	Name:  "discover",
	Usage: "restore the used accounts of the wallet by scanning the chain",
	Flags: []cli.Flag{
		walletFlag,
		passwordFlag,
		pinFlag,
		&cli.IntFlag{
			Name:  "gap_limit",
			Usage: "the number of consecutive unused accounts after which to stop",
		},
	},
	Action: discoverAction,
}

func accountsAction(c *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	walletID, err := getWalletID(ctx, c, svc)
	if err != nil {
		return err
	}
	accounts, err := svc.wallet.ListAccounts(ctx, walletID)
	if err != nil {
		return err
	}

	printJSON(c.App.Writer, accounts)
	return nil
}

func newAccountAction(c *cli.Context) error {
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

	var index *uint32
	if c.IsSet("index") {
		i := uint32(c.Uint("index"))
		index = &i
	}
	account, err := svc.wallet.CreateAccount(ctx, w.ID, c.String("name"), index)
	if err != nil {
		return err
	}

	printJSON(c.App.Writer, account)
	return nil
}

func discoverAction(c *cli.Context) error {
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

	gapLimit := config.GetInt(config.GapLimitKey)
	if c.IsSet("gap_limit") {
		gapLimit = c.Int("gap_limit")
	}
	discovered, err := svc.wallet.DiscoverAccounts(ctx, w.ID, gapLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "discovered %d accounts\n", len(discovered))
	if len(discovered) > 0 {
		printJSON(c.App.Writer, discovered)
	}
	return nil
}
