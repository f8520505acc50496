package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chinmay1088/meridian/config"
)

var networkCmd = &cobra.Command{
	Use:   "network [mainnet|testnet]",
	Short: "Show or change network",
	Long: `Show the current NEAR network or switch between mainnet and testnet.

Accounts are stored per network, so switching shows a different account list.
The chain providers in the config file decide which EVM and Bitcoin
networks are used.

Examples:
  meridian network            # Show current network
  meridian network mainnet    # Switch to mainnet
  meridian network testnet    # Switch to testnet`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNetwork,
}

func runNetwork(cmd *cobra.Command, args []string) error {
	dir, err := config.DefaultDir()
	if err != nil {
		return err
	}

	// If no arguments provided, show current network
	if len(args) == 0 {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(dir, path)
		if err != nil {
			return err
		}
		return showCurrentNetwork(cfg)
	}

	network := strings.ToLower(args[0])
	if err := config.WriteNetwork(dir, network); err != nil {
		return err
	}

	fmt.Printf("🌐 Switched to %s network\n", strings.ToUpper(network))
	if network == config.NetworkMainnet {
		fmt.Println()
		printWarning("Mainnet has no default derivation-path contract. Set networks.mainnet.contract_id in the config file")
	}
	return nil
}

func showCurrentNetwork(cfg *config.Config) error {
	net := cfg.Active()

	name := color.YellowString("Testnet")
	if cfg.Network == config.NetworkMainnet {
		name = color.GreenString("Mainnet")
	}
	fmt.Printf("🌐 Current network: %s\n", name)
	fmt.Println()
	fmt.Println("Network details:")
	fmt.Printf("   - NEAR RPC:  %s\n", net.NodeURL)
	fmt.Printf("   - Contract:  %s\n", valueOrUnset(net.ContractID))
	fmt.Printf("   - MPC:       %s\n", valueOrUnset(net.MPCContractID))
	fmt.Printf("   - Ethereum:  %s\n", valueOrUnset(cfg.Chains.Ethereum.ProviderURL))
	fmt.Printf("   - BSC:       %s\n", valueOrUnset(cfg.Chains.BSC.ProviderURL))
	fmt.Printf("   - Bitcoin:   %s (%s)\n", valueOrUnset(cfg.Chains.BTC.RPCEndpoint), cfg.Chains.BTC.NetworkType)
	return nil
}

func valueOrUnset(v string) string {
	if v == "" {
		return color.RedString("not set")
	}
	return v
}
