package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/config"
	"github.com/urfave/cli/v2"
)

var (
	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "the directory where wallets and vaults are stored",
	}
	chainFlag = &cli.StringFlag{
		Name:  "chain",
		Usage: "the chain to use, either cardano or bitcoin",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "the network to use, either mainnet or testnet",
	}
	walletFlag = &cli.StringFlag{
		Name:  "wallet",
		Usage: "the id of the wallet, defaults to the active one",
	}
	passwordFlag = &cli.StringFlag{
		Name:    "password",
		Usage:   "the password used to encrypt the mnemonic",
		EnvVars: []string{"CUSTODY_PASSWORD"},
	}
	pinFlag = &cli.StringFlag{
		Name:  "pin",
		Usage: "unlock with the PIN instead of the password",
	}
	accountFlag = &cli.UintFlag{
		Name:  "account",
		Usage: "the index of the account, defaults to the active one",
	}
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Version = "0.0.1"
	app.Name = "custody"
	app.Usage = "Command line interface for the custody wallet engine"
	app.Flags = []cli.Flag{datadirFlag, chainFlag, networkFlag}
	app.Before = setupConfig
	app.Commands = append(
		app.Commands,
		&create,
		&unlockcheck,
		&changepassword,
		&enablepin,
		&accounts,
		&newaccount,
		&discover,
		&balance,
		&utxos,
		&send,
		&followtip,
		&setprovider,
	)
	return app
}

func setupConfig(ctx *cli.Context) error {
	if ctx.IsSet(datadirFlag.Name) {
		config.Set(config.DatadirKey, ctx.String(datadirFlag.Name))
	}
	if ctx.IsSet(chainFlag.Name) {
		config.Set(config.ChainKey, ctx.String(chainFlag.Name))
	}
	if ctx.IsSet(networkFlag.Name) {
		config.Set(config.NetworkKey, ctx.String(networkFlag.Name))
	}
	if err := config.Validate(); err != nil {
		return err
	}
	log.SetLevel(config.GetLogLevel())
	return config.InitDatadir()
}

func printJSON(w io.Writer, resp interface{}) {
	buf, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Fprintln(w, "unable to decode response: ", err)
		return
	}
	fmt.Fprintln(w, string(buf))
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[custody] %v\n", err)
	}
	os.Exit(1)
}
