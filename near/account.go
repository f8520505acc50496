package near

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
)

const (
	// DefaultFunctionCallGas is 300 Tgas.
	DefaultFunctionCallGas uint64 = 300_000_000_000_000

	// StorageCostPerByte is 10^19 yoctoNEAR.
	storageCostPerByteExp = 19
)

// RPC is what an Account needs from the node.
type RPC interface {
	ViewAccount(ctx context.Context, accountID string) (*AccountView, error)
	ViewAccessKey(ctx context.Context, accountID, publicKey string) (*AccessKeyView, error)
	CallFunction(ctx context.Context, contractID, method string, args []byte) ([]byte, error)
	BroadcastTxCommit(ctx context.Context, signedTx []byte) (*Outcome, error)
}

// Account is a connected session able to sign for accountID.
type Account struct {
	accountID string
	keyPair   *KeyPair
	rpc       RPC
}

func NewAccount(rpc RPC, accountID string, kp *KeyPair) *Account {
	return &Account{accountID: accountID, keyPair: kp, rpc: rpc}
}

func (a *Account) AccountID() string { return a.accountID }

func (a *Account) PublicKey() string { return a.keyPair.PublicKeyString() }

// FunctionCallRequest describes a change call. Args is JSON-marshalled
// unless it is already a []byte or json.RawMessage.
type FunctionCallRequest struct {
	ContractID string
	MethodName string
	Args       interface{}
	Gas        uint64
	Deposit    *big.Int
}

func encodeArgs(args interface{}) ([]byte, error) {
	switch v := args.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal args: %w", err)
		}
		return data, nil
	}
}

// FunctionCall signs and commits a single function call and returns the
// decoded SuccessValue.
func (a *Account) FunctionCall(ctx context.Context, req FunctionCallRequest) ([]byte, error) {
	args, err := encodeArgs(req.Args)
	if err != nil {
		return nil, err
	}
	gas := req.Gas
	if gas == 0 {
		gas = DefaultFunctionCallGas
	}

	pub := a.keyPair.PublicKeyString()
	accessKey, err := a.rpc.ViewAccessKey(ctx, a.accountID, pub)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch access key: %w", err)
	}

	blockHash, err := base58.Decode(accessKey.BlockHash)
	if err != nil || len(blockHash) != 32 {
		return nil, fmt.Errorf("invalid block hash %q", accessKey.BlockHash)
	}

	tx := &Transaction{
		SignerID:   a.accountID,
		PublicKey:  a.keyPair.PublicKey(),
		Nonce:      accessKey.Nonce + 1,
		ReceiverID: req.ContractID,
		Actions: []FunctionCallAction{{
			MethodName: req.MethodName,
			Args:       args,
			Gas:        gas,
			Deposit:    req.Deposit,
		}},
	}
	copy(tx.BlockHash[:], blockHash)

	signed, _, err := SignTransaction(tx, a.keyPair)
	if err != nil {
		return nil, err
	}

	outcome, err := a.rpc.BroadcastTxCommit(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("%s.%s failed: %w", req.ContractID, req.MethodName, err)
	}
	return outcome.SuccessValue, nil
}

// ViewFunction calls a view method and decodes its JSON result into out.
func (a *Account) ViewFunction(ctx context.Context, contractID, method string, args interface{}, out interface{}) error {
	data, err := encodeArgs(args)
	if err != nil {
		return err
	}
	result, err := a.rpc.CallFunction(ctx, contractID, method, data)
	if err != nil {
		return fmt.Errorf("%s.%s failed: %w", contractID, method, err)
	}
	return decodeJSON(result, out)
}

// AccountBalance is the breakdown of an account's balance in yoctoNEAR.
type AccountBalance struct {
	Total       *big.Int
	StateStaked *big.Int
	Staked      *big.Int
	Available   *big.Int
}

// Balance computes the spendable balance: amount + locked minus the larger
// of locked and storage cost.
func (a *Account) Balance(ctx context.Context) (*AccountBalance, error) {
	view, err := a.rpc.ViewAccount(ctx, a.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to view account: %w", err)
	}
	return computeBalance(view), nil
}

func computeBalance(view *AccountView) *AccountBalance {
	costPerByte := new(big.Int).Exp(big.NewInt(10), big.NewInt(storageCostPerByteExp), nil)
	stateStaked := new(big.Int).Mul(new(big.Int).SetUint64(view.StorageUsage), costPerByte)
	staked := new(big.Int).Set(view.Locked)
	total := new(big.Int).Add(view.Amount, view.Locked)

	reserved := staked
	if stateStaked.Cmp(staked) > 0 {
		reserved = stateStaked
	}
	available := new(big.Int).Sub(total, reserved)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}

	return &AccountBalance{
		Total:       total,
		StateStaked: stateStaked,
		Staked:      staked,
		Available:   available,
	}
}
