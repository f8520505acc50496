package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chinmay1088/meridian/account"
	"github.com/chinmay1088/meridian/near"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage NEAR accounts",
	Long: `Create, import and switch between the NEAR accounts stored on this machine.

The active account pays for derivation paths and requests MPC signatures.`,
}

var accountCreateCmd = &cobra.Command{
	Use:   "create [account-id]",
	Short: "Create a new account",
	Long: `Generate a new 12-word seed phrase and store its key.

Without an account id the implicit account (the hex of the public key) is
used. Fund it before adding derivation paths.

This command will:
  - Generate a new 12-word recovery phrase
  - Optionally seal the key with a passphrase
  - Make the new account active`,
	Args: cobra.MaximumNArgs(1),
	RunE: action(runAccountCreate),
}

var accountImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an account from its seed phrase",
	Args:  cobra.NoArgs,
	RunE:  action(runAccountImport),
}

var accountUseCmd = &cobra.Command{
	Use:   "use <account-id>",
	Short: "Switch the active account",
	Args:  cobra.ExactArgs(1),
	RunE:  action(runAccountUse),
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove <account-id>",
	Short: "Forget a stored account",
	Long: `Delete an account and its key from this machine. The account itself stays
on NEAR and can be imported again from its seed phrase.`,
	Args: cobra.ExactArgs(1),
	RunE: action(runAccountRemove),
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  action(runAccountList),
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active account",
	Args:  cobra.NoArgs,
	RunE:  action(runAccountShow),
}

func runAccountCreate(_ context.Context, a *app, cmd *cobra.Command, args []string) error {
	accountID := ""
	if len(args) == 1 {
		accountID = strings.TrimSpace(args[0])
	}
	if accountID != "" && a.accounts.Store().HasAccount(accountID) {
		return fmt.Errorf("account %s already exists", accountID)
	}

	fmt.Println("🚀 Creating NEAR account")
	fmt.Println()

	passphrase, err := readNewPassphrase()
	if err != nil {
		return err
	}

	created, err := a.accounts.Create(accountID, passphrase)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	printSuccess("Account %s created on %s", color.CyanString(created.AccountID), a.net.NetworkID)
	fmt.Println()
	fmt.Println("🔐 Seed Phrase (12 words):")
	fmt.Println()
	fmt.Printf("   %s\n", created.SeedPhrase)
	fmt.Println()

	if dir, _ := cmd.Flags().GetString("save"); dir != "" {
		path, err := account.SaveSeedPhrase(dir, created.AccountID, created.SeedPhrase)
		if err != nil {
			return err
		}
		fmt.Printf("💾 Seed phrase saved to %s\n", path)
		fmt.Println()
	}

	fmt.Println("⚠️  IMPORTANT:")
	fmt.Println("   - Write down this seed phrase and store it securely")
	fmt.Println("   - Anyone with this phrase controls the account and its derivation paths")
	fmt.Println()
	fmt.Println("🔑 Next steps:")
	fmt.Printf("   - Fund %s with NEAR\n", created.AccountID)
	fmt.Println("   - Run 'meridian path add eth <alias>' to mint your first derivation path")
	return nil
}

func runAccountImport(_ context.Context, a *app, _ *cobra.Command, _ []string) error {
	fmt.Println("📝 Import account from seed phrase")
	fmt.Println()

	fmt.Print("Enter seed phrase (12 words): ")
	reader := bufio.NewReader(os.Stdin)
	phrase, err := reader.ReadString('\n')
	if err != nil && phrase == "" {
		return fmt.Errorf("failed to read seed phrase: %w", err)
	}

	// checked here so a bad phrase never reaches the passphrase prompt
	if len(strings.Fields(phrase)) != near.SeedPhraseWords {
		return near.ErrInvalidSeedPhrase
	}

	passphrase, err := readNewPassphrase()
	if err != nil {
		return err
	}

	imported, err := a.accounts.Import(phrase, passphrase)
	if err != nil {
		return fmt.Errorf("failed to import account: %w", err)
	}

	printSuccess("Account %s imported", color.CyanString(imported.AccountID))
	fmt.Printf("   Public key: %s\n", imported.PublicKey)
	return nil
}

func runAccountUse(_ context.Context, a *app, _ *cobra.Command, args []string) error {
	if err := a.accounts.Use(args[0]); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("account %s is not stored on %s. Run 'meridian account list'", args[0], a.net.NetworkID)
		}
		return err
	}
	printSuccess("Active account is now %s", color.CyanString(args[0]))
	return nil
}

func runAccountRemove(_ context.Context, a *app, cmd *cobra.Command, args []string) error {
	id := args[0]
	if !a.accounts.Store().HasAccount(id) {
		return fmt.Errorf("account %s is not stored on %s. Run 'meridian account list'", id, a.net.NetworkID)
	}

	printWarning("The key of %s will be deleted from this machine", id)
	fmt.Println("   Make sure its seed phrase is backed up")
	if yes, _ := cmd.Flags().GetBool("yes"); !yes && !confirm("Remove this account?") {
		fmt.Println("❌ Removal cancelled by user")
		return nil
	}

	if err := a.accounts.Remove(id); err != nil {
		return err
	}
	printSuccess("Removed %s", id)
	return nil
}

func runAccountList(_ context.Context, a *app, _ *cobra.Command, _ []string) error {
	accounts, err := a.accounts.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Printf("No accounts stored for %s. Run 'meridian account create' first\n", a.net.NetworkID)
		return nil
	}

	fmt.Printf("👤 Accounts (%s)\n", a.net.NetworkID)
	fmt.Println()
	for _, acc := range accounts {
		marker := "  "
		name := acc.AccountID
		if acc.Active {
			marker = color.GreenString("* ")
			name = color.CyanString(acc.AccountID)
		}
		sealed := ""
		if acc.Sealed {
			sealed = " 🔒"
		}
		fmt.Printf("%s%s%s\n", marker, name, sealed)
	}
	return nil
}

func runAccountShow(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	session, err := a.session(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("👤 Account: %s\n", color.CyanString(session.AccountID()))
	fmt.Printf("   Network:    %s\n", a.net.NetworkID)
	fmt.Printf("   Public key: %s\n", session.PublicKey())

	if balance, err := a.accounts.Balance(ctx, session); err != nil {
		printWarning("Balance unavailable: %v", err)
	} else {
		fmt.Printf("   Balance:    %s NEAR\n", balance)
	}

	if cc, err := a.contractClient(session); err != nil {
		printWarning("%v", err)
	} else if detail, err := cc.GetAccount(ctx); err != nil {
		printWarning("Registration unavailable: %v", err)
	} else if detail == nil {
		fmt.Printf("   Contract:   not registered on %s\n", a.net.ContractID)
	} else {
		fmt.Printf("   Contract:   registered on %s, %d derivation paths\n", a.net.ContractID, detail.PathCount())
	}

	if a.net.ExplorerURL != "" {
		fmt.Printf("   Explorer:   %s/accounts/%s\n", strings.TrimRight(a.net.ExplorerURL, "/"), session.AccountID())
	}
	return nil
}

func init() {
	accountCreateCmd.Flags().String("save", "", "also write the seed phrase to <dir>/<account-id>.txt")
	accountRemoveCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountImportCmd)
	accountCmd.AddCommand(accountUseCmd)
	accountCmd.AddCommand(accountRemoveCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountShowCmd)
}
