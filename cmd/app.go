package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chinmay1088/meridian/account"
	"github.com/chinmay1088/meridian/api"
	"github.com/chinmay1088/meridian/chains"
	"github.com/chinmay1088/meridian/chains/bitcoin"
	"github.com/chinmay1088/meridian/chains/evm"
	"github.com/chinmay1088/meridian/config"
	"github.com/chinmay1088/meridian/contract"
	"github.com/chinmay1088/meridian/keystore"
	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/mpc"
	"github.com/chinmay1088/meridian/near"
	"github.com/chinmay1088/meridian/wallet"
)

const storageFile = "storage.json"

var logOutput io.Writer = os.Stderr

// app is everything a command needs, built from config for the selected
// NEAR network.
type app struct {
	cfg      *config.Config
	net      config.NearNetwork
	log      zerolog.Logger
	http     *api.Client
	rpc      *near.Client
	accounts *account.Service
}

func newApp(cmd *cobra.Command) (*app, error) {
	dir, err := config.DefaultDir()
	if err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir, path)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	log := logger.New(logOutput, level)

	net := cfg.Active()
	httpClient := api.NewClient(cfg.Request.Timeout)
	rpc := near.NewClient(httpClient, net.NodeURL, log)

	store := keystore.New(keystore.NewFileStorage(filepath.Join(dir, storageFile)), net.NetworkID)

	return &app{
		cfg:      cfg,
		net:      net,
		log:      log,
		http:     httpClient,
		rpc:      rpc,
		accounts: account.NewService(store, rpc, log),
	}, nil
}

// reportedError marks an error that has already been logged.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

// Reported reports whether err was already written to the log by a command.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// action builds the app and logs the returned error once.
func action(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		if err := fn(cmd.Context(), a, cmd, args); err != nil {
			a.log.Error().Err(err).Str("command", cmd.CommandPath()).Msg("command failed")
			return reportedError{err}
		}
		return nil
	}
}

// session connects the active account, asking for the passphrase when its
// key is sealed.
func (a *app) session(ctx context.Context) (*near.Account, error) {
	id, err := a.accounts.Store().ActiveAccountID()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("no active account. Run 'meridian account create' or 'meridian account import' first")
	}

	passphrase := ""
	sealed, err := a.accounts.Store().IsSealed(id)
	if err != nil {
		return nil, err
	}
	if sealed {
		passphrase, err = readPassword(fmt.Sprintf("Passphrase for %s: ", id))
		if err != nil {
			return nil, err
		}
	}
	return a.accounts.Connect(ctx, id, passphrase)
}

func (a *app) contractClient(session *near.Account) (*contract.Client, error) {
	if a.net.ContractID == "" {
		return nil, fmt.Errorf("no derivation path contract configured for %s", a.net.NetworkID)
	}
	return contract.NewClient(session, a.net.ContractID, a.net.MPCContractID, a.log), nil
}

// rootKey serves the configured MPC root key, falling back to the signer
// contract when none is configured.
type rootKey struct {
	key      string
	contract *contract.Client
}

func (r rootKey) RootPublicKey(ctx context.Context) (string, error) {
	if r.key != "" {
		return r.key, nil
	}
	return r.contract.RootPublicKey(ctx)
}

// walletManager wires the chain adapters with the MPC signer of session.
func (a *app) walletManager(ctx context.Context, session *near.Account) (*wallet.Manager, error) {
	cc, err := a.contractClient(session)
	if err != nil {
		return nil, err
	}
	signer := mpc.NewContractSigner(session, a.net.ContractID, a.log)

	m := wallet.NewManager(rootKey{key: a.net.MPCPublicKey, contract: cc}, a.log)

	for chain, chainCfg := range map[chains.Chain]config.EVMChain{
		chains.ETH: a.cfg.Chains.Ethereum,
		chains.BNB: a.cfg.Chains.BSC,
	} {
		if chainCfg.ProviderURL == "" {
			continue
		}
		client, err := evm.Dial(ctx, chainCfg)
		if err != nil {
			return nil, err
		}
		m.WithEVM(chain, evm.New(client, signer, chainCfg, a.net.ContractID, a.log))
	}

	if a.cfg.Chains.BTC.RPCEndpoint != "" {
		esplora := api.NewEsplora(a.http, a.cfg.Chains.BTC.RPCEndpoint)
		btc, err := bitcoin.New(esplora, signer, a.cfg.Chains.BTC, a.net.ContractID, a.log)
		if err != nil {
			return nil, err
		}
		m.WithBitcoin(btc)
	}
	return m, nil
}

func parseChainArg(arg string) (chains.Chain, error) {
	chain, err := chains.ParseChain(arg)
	if err != nil {
		return 0, fmt.Errorf("%w. Supported chains: eth, bnb, btc", err)
	}
	return chain, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(password), nil
}

// readNewPassphrase asks for an optional passphrase twice. Empty means the
// key is stored unsealed.
func readNewPassphrase() (string, error) {
	password, err := readPassword("Passphrase to encrypt the key (leave empty to skip): ")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", nil
	}
	if len(password) < 8 {
		return "", fmt.Errorf("passphrase must be at least 8 characters long")
	}

	again, err := readPassword("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if password != again {
		return "", fmt.Errorf("passphrases do not match")
	}
	return password, nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// withSpinner shows a spinner on stderr while fn runs.
func withSpinner[T any](description string, fn func() (T, error)) (T, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	res, err := fn()
	close(done)
	<-stopped
	_ = bar.Finish()
	return res, err
}

func printSuccess(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", color.GreenString("✅"), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", color.YellowString("⚠️ "), fmt.Sprintf(format, args...))
}

func isNotFound(err error) bool {
	return errors.Is(err, keystore.ErrAccountNotFound)
}
