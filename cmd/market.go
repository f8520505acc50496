package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chinmay1088/meridian/contract"
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Trade derivation paths",
	Long: `List, sell and buy derivation paths on the derivation-path contract market.
Prices are in NEAR.`,
}

var marketListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show listed derivation paths",
	Args:  cobra.NoArgs,
	RunE:  action(runMarketList),
}

var marketSellCmd = &cobra.Command{
	Use:   "sell <token-id> <price>",
	Short: "List one of your paths for sale",
	Args:  cobra.ExactArgs(2),
	RunE:  action(runMarketSell),
}

var marketUnlistCmd = &cobra.Command{
	Use:   "unlist <token-id>",
	Short: "Withdraw a listing",
	Args:  cobra.ExactArgs(1),
	RunE:  action(runMarketUnlist),
}

var marketBuyCmd = &cobra.Command{
	Use:   "buy <token-id>",
	Short: "Buy a listed path at its asking price",
	Args:  cobra.ExactArgs(1),
	RunE:  action(runMarketBuy),
}

func runMarketList(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetInt("from")
	limit, _ := cmd.Flags().GetInt("limit")

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	cc, err := a.contractClient(session)
	if err != nil {
		return err
	}

	listings, err := cc.Listings(ctx, from, limit)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Println("The market is empty")
		return nil
	}

	fmt.Printf("🛒 Market (%s)\n", a.net.ContractID)
	fmt.Println()
	for _, l := range listings {
		symbol := "?"
		if id, err := contract.ParseTokenID(l.TokenID); err == nil {
			symbol = id.Chain.Symbol()
		}
		fmt.Printf("%s %s  %s NEAR\n", color.CyanString("%-4s", symbol), l.TokenID, color.GreenString(l.PriceNEAR()))
	}
	return nil
}

func runMarketSell(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	tokenID, price := args[0], args[1]

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	cc, err := a.contractClient(session)
	if err != nil {
		return err
	}

	_, err = withSpinner("Listing derivation path...", func() (struct{}, error) {
		return struct{}{}, cc.AddDerivationPathToMarket(ctx, tokenID, price)
	})
	if err != nil {
		return err
	}
	printSuccess("Listed %s for %s NEAR", tokenID, price)
	return nil
}

func runMarketUnlist(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	cc, err := a.contractClient(session)
	if err != nil {
		return err
	}

	_, err = withSpinner("Removing listing...", func() (struct{}, error) {
		return struct{}{}, cc.RemoveDerivationPathFromMarket(ctx, args[0])
	})
	if err != nil {
		return err
	}
	printSuccess("Removed %s from the market", args[0])
	return nil
}

func runMarketBuy(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	tokenID := args[0]
	if _, err := contract.ParseTokenID(tokenID); err != nil {
		return err
	}

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	cc, err := a.contractClient(session)
	if err != nil {
		return err
	}

	price, err := cc.ListingPrice(ctx, tokenID)
	if err != nil {
		return err
	}

	fmt.Printf("🛒 Buying %s for %s NEAR\n", tokenID, color.GreenString(price))
	if yes, _ := cmd.Flags().GetBool("yes"); !yes && !confirm("Continue?") {
		fmt.Println("❌ Purchase cancelled by user")
		return nil
	}

	_, err = withSpinner("Buying derivation path...", func() (struct{}, error) {
		return struct{}{}, cc.BuyDerivationPath(ctx, tokenID, price)
	})
	if err != nil {
		return err
	}
	printSuccess("Bought %s", tokenID)
	fmt.Println("   Run 'meridian path list' to see it")
	return nil
}

func init() {
	marketListCmd.Flags().Int("from", 0, "index of the first listing")
	marketListCmd.Flags().Int("limit", contract.DefaultMarketPageSize, "maximum number of listings")
	marketBuyCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	marketCmd.AddCommand(marketListCmd)
	marketCmd.AddCommand(marketSellCmd)
	marketCmd.AddCommand(marketUnlistCmd)
	marketCmd.AddCommand(marketBuyCmd)
}
