package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chinmay1088/meridian/chains"
	"github.com/chinmay1088/meridian/contract"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Manage derivation paths",
	Long: `Derivation paths are NFTs on the derivation-path contract. Each one
controls an address on its chain, signed for by the NEAR MPC signer.`,
}

var pathAddCmd = &cobra.Command{
	Use:   "add <chain> <alias>",
	Short: "Mint a new derivation path (0.01 NEAR)",
	Args:  cobra.ExactArgs(2),
	RunE:  action(runPathAdd),
}

var pathRenameCmd = &cobra.Command{
	Use:   "rename <token-id> <alias>",
	Short: "Rename a derivation path (0.01 NEAR)",
	Args:  cobra.ExactArgs(2),
	RunE:  action(runPathRename),
}

var pathListCmd = &cobra.Command{
	Use:   "list [chain]",
	Short: "List your derivation paths",
	Args:  cobra.MaximumNArgs(1),
	RunE:  action(runPathList),
}

func runPathAdd(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	chain, err := parseChainArg(args[0])
	if err != nil {
		return err
	}
	alias := strings.TrimSpace(args[1])

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	cc, err := a.contractClient(session)
	if err != nil {
		return err
	}

	_, err = withSpinner("Minting derivation path...", func() (struct{}, error) {
		return struct{}{}, cc.AddDerivationPath(ctx, alias, chain)
	})
	if err != nil {
		return err
	}

	printSuccess("Added %s path %s", chain.Symbol(), color.CyanString(alias))
	fmt.Println("   Run 'meridian path list' to see its token id")
	return nil
}

func runPathRename(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	tokenID, alias := args[0], strings.TrimSpace(args[1])
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

	_, err = withSpinner("Renaming derivation path...", func() (struct{}, error) {
		return struct{}{}, cc.UpdatePathAlias(ctx, alias, tokenID)
	})
	if err != nil {
		return err
	}

	printSuccess("Renamed %s to %s", tokenID, color.CyanString(alias))
	return nil
}

func runPathList(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	var filter *chains.Chain
	if len(args) == 1 {
		chain, err := parseChainArg(args[0])
		if err != nil {
			return err
		}
		filter = &chain
	}

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	cc, err := a.contractClient(session)
	if err != nil {
		return err
	}

	tokens, err := cc.QueryTokens(ctx, filter)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Println("No derivation paths found")
		return nil
	}

	fmt.Printf("🧭 Derivation paths of %s\n", color.CyanString(session.AccountID()))
	fmt.Println()
	for _, token := range tokens {
		symbol := "?"
		if id, err := token.Parsed(); err == nil {
			symbol = id.Chain.Symbol()
		}
		fmt.Printf("%s %s\n", color.CyanString("%-4s", symbol), token.Alias())
		fmt.Printf("     🏷  %s\n", token.TokenID)
	}
	return nil
}

func init() {
	pathCmd.AddCommand(pathAddCmd)
	pathCmd.AddCommand(pathRenameCmd)
	pathCmd.AddCommand(pathListCmd)
}
