package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chinmay1088/meridian/chains"
	"github.com/chinmay1088/meridian/wallet"
)

var payCmd = &cobra.Command{
	Use:   "pay <chain> <token-id> <to> <value>",
	Short: "Send from a derived address",
	Long: `Send funds from the address of a derivation path. The transaction is signed
by the MPC contract on behalf of the active NEAR account and broadcast to
the target chain. A failed broadcast is not retried.

Supported chains: eth, bnb, btc

Examples:
  meridian pay eth '{"chain":60,"meta":{"id":0}}' 0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6 0.01
  meridian pay bnb '{"chain":714,"meta":{"id":1}}' 0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6 0 --data 0xa9059cbb...
  meridian pay btc '{"chain":0,"meta":{"id":2}}' tb1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh 0.0001`,
	Args: cobra.ExactArgs(4),
	RunE: action(runPay),
}

func runPay(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	chain, err := parseChainArg(args[0])
	if err != nil {
		return err
	}
	tokenID, to, value := args[1], args[2], args[3]
	data, _ := cmd.Flags().GetString("data")
	if data != "" && !chain.IsEVM() {
		return fmt.Errorf("--data is only supported on EVM chains")
	}

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	manager, err := a.walletManager(ctx, session)
	if err != nil {
		return err
	}

	from, err := manager.DeriveAddress(ctx, chain, tokenID)
	if err != nil {
		return fmt.Errorf("failed to derive sender address: %w", err)
	}

	fmt.Printf("📊 Transaction Details:\n")
	fmt.Printf("   Chain:   %s\n", chain.Symbol())
	fmt.Printf("   From:    %s\n", from)
	fmt.Printf("   To:      %s\n", to)
	fmt.Printf("   Amount:  %s %s\n", value, chain.Symbol())
	if data != "" {
		fmt.Printf("   Data:    %s\n", data)
	}
	fmt.Printf("   Signer:  %s via %s\n", session.AccountID(), a.net.ContractID)
	fmt.Printf("   Network: %s\n", a.net.NetworkID)
	fmt.Println()

	if yes, _ := cmd.Flags().GetBool("yes"); !yes && !confirm("Send this transaction?") {
		fmt.Println("❌ Transaction cancelled by user")
		return nil
	}

	res, err := withSpinner("Waiting for MPC signature...", func() (*wallet.Result, error) {
		return manager.Send(ctx, chain, tokenID, wallet.Transfer{To: to, Value: value, Data: data})
	})
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", chain.Symbol(), err)
	}

	printSuccess("Transaction sent")
	fmt.Printf("   Hash:     %s\n", color.CyanString(res.Hash))
	fmt.Printf("   Explorer: %s\n", res.Explorer)
	if chain == chains.BTC {
		fmt.Println("   Bitcoin transactions may take a few blocks to confirm")
	}
	return nil
}

func init() {
	payCmd.Flags().String("data", "", "0x-prefixed call data (EVM chains)")
	payCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}
