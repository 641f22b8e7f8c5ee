package main

import (
	"context"
	"fmt"

	"github.com/tdex-network/custody/config"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var setprovider = cli.Command{
	Name:  "set-provider",
	Usage: "use a custom endpoint for the chain and network, or list the custom ones",
	Flags: []cli.Flag{
		walletFlag,
		passwordFlag,
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "the endpoint of the provider, host:port for UTxO RPC or the url of esplora",
		},
		&cli.StringFlag{
			Name:  "api_key",
			Usage: "the API key of the provider, stored encrypted in the secure store",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "a label for the provider",
		},
		&cli.BoolFlag{
			Name:  "delete",
			Usage: "go back to the default endpoint",
		},
		&cli.BoolFlag{
			Name:  "list",
			Usage: "list the custom endpoints",
		},
	},
	Action: setProviderAction,
}

func setProviderAction(c *cli.Context) error {
	password := []byte(c.String(passwordFlag.Name))
	defer clear(password)

	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	info := config.GetChainInfo()

	if c.Bool("list") {
		configs, err := svc.vault.ListCustomProviderConfigs(ctx)
		if err != nil {
			return err
		}
		printJSON(c.App.Writer, configs)
		return nil
	}

	walletID, err := getWalletID(ctx, c, svc)
	if err != nil {
		return err
	}

	if c.Bool("delete") {
		if err := svc.vault.DeleteCustomProviderConfig(
			ctx, walletID, info, password,
		); err != nil {
			return err
		}
		svc.providers.Invalidate(info)
		fmt.Fprintf(c.App.Writer, "Using the default provider for %s\n", info)
		return nil
	}

	endpoint := c.String("endpoint")
	if endpoint == "" {
		return &invalidUsageError{c, c.Command.Name}
	}
	cfg := domain.ProviderConfig{
		Chain:    info.Chain,
		Network:  info.Network,
		Endpoint: endpoint,
		Name:     c.String("name"),
		APIKey:   c.String("api_key"),
	}
	if err := svc.vault.SaveCustomProviderConfig(
		ctx, walletID, cfg, password,
	); err != nil {
		return err
	}
	svc.providers.Invalidate(info)

	fmt.Fprintf(c.App.Writer, "Using %s for %s\n", endpoint, info)
	return nil
}
