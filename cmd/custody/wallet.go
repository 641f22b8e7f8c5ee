package main

import (
	"context"
	"fmt"

	"github.com/tdex-network/custody/config"
	"github.com/tdex-network/custody/internal/core/application/wallet"
	"github.com/urfave/cli/v2"
)

const (
	curPwdFlagName = "current_password"
	newPwdFlagName = "new_password"
)

var create = cli.Command{
	Name:  "create",
	Usage: "create a new wallet, or restore one from its mnemonic",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Usage: "the name of the wallet",
			Value: "Wallet",
		},
		&cli.StringFlag{
			Name:  "mnemonic",
			Usage: "the mnemonic to restore, a new one is generated if empty",
		},
		passwordFlag,
	},
	Action: createAction,
}

var unlockcheck = cli.Command{
	Name:   "unlock-check",
	Usage:  "check that the wallet can be unlocked with the given password or PIN",
	Flags:  []cli.Flag{walletFlag, passwordFlag, pinFlag},
	Action: unlockCheckAction,
}

var changepassword = cli.Command{
	Name:  "change-password",
	Usage: "change the password used to encrypt the mnemonic. The PIN, if enabled, is disabled",
	Flags: []cli.Flag{
		walletFlag,
		&cli.StringFlag{
			Name:  curPwdFlagName,
			Usage: "the old unlocking password to be changed",
		},
		&cli.StringFlag{
			Name:  newPwdFlagName,
			Usage: "the new password that replaces the old one",
		},
	},
	Action: changePasswordAction,
}

var enablepin = cli.Command{
	Name:  "enable-pin",
	Usage: "let the wallet be unlocked with a PIN",
	Flags: []cli.Flag{
		walletFlag,
		passwordFlag,
		&cli.StringFlag{
			Name:     "new_pin",
			Usage:    "the PIN to enable",
			Required: true,
		},
	},
	Action: enablePinAction,
}

func createAction(c *cli.Context) error {
	password := []byte(c.String(passwordFlag.Name))
	defer clear(password)
	if len(password) <= 0 {
		return &invalidUsageError{c, c.Command.Name}
	}

	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	w, mnemonic, err := svc.wallet.CreateWallet(ctx, wallet.CreateWalletRequest{
		Name:     c.String("name"),
		Mnemonic: c.String("mnemonic"),
		Password: password,
		Info:     config.GetChainInfo(),
	})
	if err != nil {
		return err
	}
	address, err := svc.wallet.GetReceiveAddress(ctx, w.ID, 0)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintln(out, "wallet:", w.ID)
	fmt.Fprintln(out, "address:", address)
	if c.String("mnemonic") == "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Write down the mnemonic, it is the only backup of the wallet:")
		fmt.Fprintln(out, mnemonic)
	}
	return nil
}

func unlockCheckAction(c *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := unlockWallet(context.Background(), c, svc); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Wallet can be unlocked")
	return nil
}

func changePasswordAction(c *cli.Context) error {
	curPwd := []byte(c.String(curPwdFlagName))
	newPwd := []byte(c.String(newPwdFlagName))
	defer clear(curPwd)
	defer clear(newPwd)

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
	if err := svc.wallet.ChangePassword(ctx, walletID, curPwd, newPwd); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Done")
	return nil
}

func enablePinAction(c *cli.Context) error {
	password := []byte(c.String(passwordFlag.Name))
	pin := []byte(c.String("new_pin"))
	defer clear(password)
	defer clear(pin)

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
	if err := svc.vault.EnablePin(ctx, walletID, password, pin); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "PIN enabled")
	return nil
}
