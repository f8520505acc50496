package evm

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmay1088/meridian/config"
	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/mpc/mpctest"
)

const (
	testContract = "mcs-demo.testnet"
	testToken    = `{"chain":60,"meta":{"id":0}}`
)

type fakeBackend struct {
	balance *big.Int
	nonce   uint64
	chainID *big.Int
	sent    []*types.Transaction
	callMsg ethereum.CallMsg
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.callMsg = msg
	return 21000, nil
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func testChain() config.EVMChain {
	return config.EVMChain{
		ProviderURL: "http://localhost:8545",
		ScanURL:     "https://sepolia.etherscan.io/",
		Name:        "ETH",
	}
}

func TestUnits(t *testing.T) {
	wei, err := EtherToWei("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", wei.String())
	assert.Equal(t, "1.5", WeiToEther(wei))
	assert.Equal(t, "0", WeiToEther(nil))

	_, err = EtherToWei("0.0000000000000000001")
	assert.Error(t, err)
	_, err = EtherToWei("-1")
	assert.Error(t, err)
}

func TestDeriveProductionAddressDeterministic(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)

	a, err := DeriveProductionAddress(testContract, testToken, signer.RootPublicKey())
	require.NoError(t, err)
	b, err := DeriveProductionAddress(testContract, testToken, signer.RootPublicKey())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	key, err := signer.ChildKey(testToken)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), a)

	_, err = DeriveProductionAddress(testContract, testToken, "secp256k1:bad")
	assert.Error(t, err)
}

func TestHandleTransaction(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)
	backend := &fakeBackend{
		balance: big.NewInt(1e18),
		nonce:   4,
		chainID: big.NewInt(11155111),
	}
	chain := New(backend, signer, testChain(), testContract, logger.Nop())

	from, err := DeriveProductionAddress(testContract, testToken, signer.RootPublicKey())
	require.NoError(t, err)

	to := "0x000000000000000000000000000000000000dEaD"
	res, err := chain.HandleTransaction(context.Background(), Transaction{
		To:    to,
		Value: "0.01",
		Data:  "0xabcd",
	}, testToken, signer.RootPublicKey())
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, res.Hash, tx.Hash().Hex())
	assert.Equal(t, "https://sepolia.etherscan.io/tx/"+res.Hash, res.Explorer)

	sender, err := types.Sender(types.LatestSignerForChainID(backend.chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	assert.Equal(t, uint64(4), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, common.HexToAddress(to), *tx.To())
	assert.Equal(t, "10000000000000000", tx.Value().String())
	assert.Equal(t, []byte{0xab, 0xcd}, tx.Data())
	assert.Equal(t, backend.chainID, tx.ChainId())
	assert.Equal(t, from, backend.callMsg.From)

	assert.Equal(t, []string{testToken}, signer.TokenIDs())
}

func TestHandleTransactionInsufficientFunds(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)
	backend := &fakeBackend{balance: big.NewInt(1000), chainID: big.NewInt(97)}
	chain := New(backend, signer, testChain(), testContract, logger.Nop())

	_, err = chain.HandleTransaction(context.Background(), Transaction{
		To:    "0x000000000000000000000000000000000000dEaD",
		Value: "1",
	}, testToken, signer.RootPublicKey())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Zero(t, signer.Calls())
	assert.Empty(t, backend.sent)
}

func TestHandleTransactionWrongSigner(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)
	other, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)

	backend := &fakeBackend{balance: big.NewInt(1e18), chainID: big.NewInt(97)}
	chain := New(backend, other, testChain(), testContract, logger.Nop())

	_, err = chain.HandleTransaction(context.Background(), Transaction{
		To:    "0x000000000000000000000000000000000000dEaD",
		Value: "0",
	}, testToken, signer.RootPublicKey())
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Empty(t, backend.sent)
}

func TestHandleTransactionRejectsBadInput(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)
	chain := New(&fakeBackend{balance: big.NewInt(0), chainID: big.NewInt(1)}, signer, testChain(), testContract, logger.Nop())

	_, err = chain.HandleTransaction(context.Background(), Transaction{To: "nope", Value: "1"}, testToken, signer.RootPublicKey())
	assert.Error(t, err)

	_, err = chain.HandleTransaction(context.Background(), Transaction{
		To: "0x000000000000000000000000000000000000dEaD", Value: "1", Data: "zz",
	}, testToken, signer.RootPublicKey())
	assert.Error(t, err)
}

func TestGetBalance(t *testing.T) {
	chain := New(&fakeBackend{balance: big.NewInt(25e16)}, nil, testChain(), testContract, logger.Nop())

	bal, err := chain.GetBalance(context.Background(), "0x000000000000000000000000000000000000dEaD")
	require.NoError(t, err)
	assert.Equal(t, "0.25", bal)

	_, err = chain.GetBalance(context.Background(), "0x12")
	assert.Error(t, err)
}
