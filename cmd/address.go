package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chinmay1088/meridian/contract"
)

var addressCmd = &cobra.Command{
	Use:   "address [chain token-id]",
	Short: "Show derived addresses",
	Long: `Show the address a derivation path controls.
Supported chains: eth, bnb, btc

Examples:
  meridian address eth '{"chain":60,"meta":{"id":0}}'   # Show one address
  meridian address                                      # Show the addresses of all your paths`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or <chain> <token-id>")
		}
		return nil
	},
	RunE: action(runAddress),
}

func runAddress(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	manager, err := a.walletManager(ctx, session)
	if err != nil {
		return err
	}

	if len(args) == 2 {
		chain, err := parseChainArg(args[0])
		if err != nil {
			return err
		}
		address, err := manager.DeriveAddress(ctx, chain, args[1])
		if err != nil {
			return err
		}
		fmt.Println(address)
		return nil
	}

	cc, err := a.contractClient(session)
	if err != nil {
		return err
	}
	tokens, err := cc.QueryTokens(ctx, nil)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Println("No derivation paths yet. Run 'meridian path add <chain> <alias>' first")
		return nil
	}

	fmt.Println("🔑 Your derived addresses:")
	fmt.Printf("🌐 Network: %s\n", a.net.NetworkID)
	fmt.Println()

	for _, token := range tokens {
		id, err := token.Parsed()
		if err != nil {
			printWarning("skipping %s: %v", token.TokenID, err)
			continue
		}
		address, err := manager.DeriveAddress(ctx, id.Chain, token.TokenID)
		if err != nil {
			printWarning("%s: %v", token.Alias(), err)
			continue
		}
		printAddress(token, id, address)
	}
	return nil
}

func printAddress(token contract.Token, id contract.TokenID, address string) {
	fmt.Printf("%s %s\n", color.CyanString("%-4s", id.Chain.Symbol()), token.Alias())
	fmt.Printf("     📍 %s\n", address)
	fmt.Printf("     🏷  %s\n", token.TokenID)
	fmt.Println()
}
