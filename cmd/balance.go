package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chinmay1088/meridian/request"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [chain token-id]",
	Short: "Check balances",
	Long: `Without arguments, show the available NEAR balance of the active account.
With a chain and token id, show the balance of that derivation path's address.

Supported chains: eth, bnb, btc

Examples:
  meridian balance                                    # NEAR balance
  meridian balance --watch                            # Keep refreshing the NEAR balance
  meridian balance btc '{"chain":0,"meta":{"id":3}}'  # Balance of a BTC path`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or <chain> <token-id>")
		}
		return nil
	},
	RunE: action(runBalance),
}

func runBalance(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	session, err := a.session(ctx)
	if err != nil {
		return err
	}

	if len(args) == 2 {
		chain, err := parseChainArg(args[0])
		if err != nil {
			return err
		}
		manager, err := a.walletManager(ctx, session)
		if err != nil {
			return err
		}

		address, err := manager.DeriveAddress(ctx, chain, args[1])
		if err != nil {
			return fmt.Errorf("failed to derive address: %w", err)
		}

		runner := request.New(func(ctx context.Context) (string, error) {
			return manager.Balance(ctx, chain, address)
		}, requestOptions[string](a))
		balance, err := runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch balance: %w", err)
		}

		fmt.Printf("💰 %s: %s %s\n", chain.Symbol(), color.GreenString(balance), chain.Symbol())
		fmt.Printf("   📍 Address: %s\n", address)
		return nil
	}

	fmt.Printf("💰 NEAR balance of %s\n", color.CyanString(session.AccountID()))
	fmt.Printf("🌐 Network: %s\n", a.net.NetworkID)
	fmt.Println()

	opts := requestOptions[string](a)
	opts.OnSuccess = func(balance string) {
		fmt.Printf("[%s] %s NEAR\n", time.Now().Format(time.TimeOnly), color.GreenString(balance))
	}
	opts.OnError = func(err error) {
		printWarning("%v", err)
	}
	runner := request.New(func(ctx context.Context) (string, error) {
		return a.accounts.Balance(ctx, session)
	}, opts)

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		err := runner.Poll(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	_, err = runner.Run(ctx)
	return err
}

func requestOptions[T any](a *app) request.Options[T] {
	opts := request.OptionsFromConfig[T](a.cfg.Request)
	opts.Log = a.log
	return opts
}

func init() {
	balanceCmd.Flags().BoolP("watch", "w", false, "keep refreshing the NEAR balance")
}
