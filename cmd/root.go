package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "0.3.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "meridian",
	Aliases:       []string{"mer"},
	Short:         "A multi-chain wallet signed by NEAR chain signatures",
	SilenceErrors: true,
	SilenceUsage:  true,
	Long: `Meridian keeps a NEAR account on this machine and uses it to control
Ethereum, BNB Smart Chain and Bitcoin addresses through the NEAR MPC
signer. Every address belongs to a derivation path, an NFT minted on the
derivation-path contract, which can be renamed or traded on its market.

Features:
  • NEAR account creation and seed phrase import
  • Optional passphrase-sealed local key storage
  • ETH, BNB and BTC addresses derived from the MPC root key
  • Transactions signed by the MPC contract and broadcast directly
  • Derivation path marketplace
  • Mainnet and Testnet support

Examples:
  meridian account create                          # Create a new NEAR account
  meridian path add eth savings                    # Mint an ETH derivation path
  meridian path list                               # Show your paths and token ids
  meridian address eth '{"chain":60,"meta":{"id":0}}'
  meridian pay eth '{"chain":60,"meta":{"id":0}}' 0x1234... 0.01
  meridian market list                             # Browse listed paths
  meridian network testnet                         # Switch to testnet mode`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.meridian/config.yml)")

	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(marketCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Meridian Wallet v%s\n", version)
	},
}
