package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmay1088/meridian/api"
	"github.com/chinmay1088/meridian/config"
	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/mpc/mpctest"
)

const (
	testContract = "mcs-demo.testnet"
	testToken    = `{"chain":0,"meta":{"id":0}}`
)

type fakeEsplora struct {
	mu        sync.Mutex
	utxos     string
	broadcast []string
}

func newFakeEsplora(t *testing.T, utxos string) (*fakeEsplora, *httptest.Server) {
	t.Helper()
	f := &fakeEsplora{utxos: utxos}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/fee-estimates":
			io.WriteString(w, `{"1":5.0,"6":2.0}`)
		case r.URL.Path == "/tx" && r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.broadcast = append(f.broadcast, string(body))
			f.mu.Unlock()
			io.WriteString(w, "txid-from-node")
		case strings.HasSuffix(r.URL.Path, "/utxo"):
			io.WriteString(w, f.utxos)
		case strings.HasPrefix(r.URL.Path, "/address/"):
			io.WriteString(w, `{"chain_stats":{"funded_txo_sum":250000,"spent_txo_sum":50000},"mempool_stats":{}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestBitcoin(t *testing.T, srv *httptest.Server, signer *mpctest.Signer) *Bitcoin {
	t.Helper()
	b, err := New(api.NewEsplora(api.NewClient(0), srv.URL), signer, config.BitcoinChain{
		RPCEndpoint: srv.URL,
		ScanURL:     "https://blockstream.info/testnet/",
		Name:        "BTC",
		NetworkType: "testnet",
	}, testContract, logger.Nop())
	require.NoError(t, err)
	return b
}

func TestAmounts(t *testing.T) {
	sats, err := BTCToSatoshis("0.001")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), sats)
	assert.Equal(t, "0.001", FormatBTC(sats))
	assert.Equal(t, "0", FormatBTC(0))

	_, err = BTCToSatoshis("0.000000001")
	assert.Error(t, err)
	_, err = BTCToSatoshis("0")
	assert.Error(t, err)
	_, err = BTCToSatoshis("abc")
	assert.Error(t, err)
}

func TestBTCToSatoshisRejectsMoreThanSupply(t *testing.T) {
	sats, err := BTCToSatoshis("21000000")
	require.NoError(t, err)
	assert.Equal(t, int64(MaxSatoshis), sats)

	for _, amount := range []string{"21000000.00000001", "100000000000", "184467440737.09551617"} {
		_, err := BTCToSatoshis(amount)
		assert.Error(t, err, amount)
	}
}

func TestNetParams(t *testing.T) {
	p, err := NetParams("testnet")
	require.NoError(t, err)
	assert.Equal(t, chaincfg.TestNet3Params.Name, p.Name)

	_, err = NetParams("litecoin")
	assert.Error(t, err)
}

func TestDeriveProductionAddressDeterministic(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)

	a, err := DeriveProductionAddress(testContract, testToken, signer.RootPublicKey(), &chaincfg.TestNet3Params)
	require.NoError(t, err)
	b, err := DeriveProductionAddress(testContract, testToken, signer.RootPublicKey(), &chaincfg.TestNet3Params)
	require.NoError(t, err)

	assert.Equal(t, a.Address, b.Address)
	assert.Len(t, a.PublicKey, 65)
	assert.Equal(t, byte(0x04), a.PublicKey[0])
	assert.Len(t, a.PublicKeyHex(), 130)

	addr, err := ParseAddress(a.Address, &chaincfg.TestNet3Params)
	require.NoError(t, err)
	assert.True(t, addr.IsForNet(&chaincfg.TestNet3Params))

	_, err = ParseAddress(a.Address, &chaincfg.MainNetParams)
	assert.Error(t, err)
}

func TestSelectUTXOs(t *testing.T) {
	utxos := []api.BitcoinUTXO{{TxID: "a", Value: 1000}, {TxID: "b", Value: 50000}, {TxID: "c", Value: 20000}}

	selected, fee, change, err := selectUTXOs(utxos, 30000, 1)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "b", selected[0].TxID)
	assert.Equal(t, EstimateFee(1, 2, 1), fee)
	assert.Equal(t, 50000-30000-fee, change)

	_, _, _, err = selectUTXOs(utxos, 80000, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	dustAmount := int64(50000) - EstimateFee(1, 2, 1) - 100
	_, fee, change, err = selectUTXOs(utxos, dustAmount, 1)
	require.NoError(t, err)
	assert.Zero(t, change)
	assert.Equal(t, int64(50000)-dustAmount, fee)
}

func TestFetchBalance(t *testing.T) {
	_, srv := newFakeEsplora(t, `[]`)
	b := newTestBitcoin(t, srv, nil)

	bal, err := b.FetchBalance(context.Background(), "tb1whatever")
	require.NoError(t, err)
	assert.Equal(t, "0.002", bal)
}

func TestHandleTransactionSignsValidScripts(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)

	txA := strings.Repeat("ab", 32)
	txB := strings.Repeat("cd", 32)
	fake, srv := newFakeEsplora(t, fmt.Sprintf(
		`[{"txid":"%s","vout":0,"value":6000,"status":{"confirmed":true}},{"txid":"%s","vout":3,"value":8000,"status":{"confirmed":true}}]`,
		txA, txB))
	b := newTestBitcoin(t, srv, signer)

	from, err := b.DeriveProductionAddress(testToken, signer.RootPublicKey())
	require.NoError(t, err)
	to, err := b.DeriveProductionAddress(`{"chain":0,"meta":{"id":1}}`, signer.RootPublicKey())
	require.NoError(t, err)

	res, err := b.HandleTransaction(context.Background(), Transfer{To: to.Address, Value: "0.0001"}, testToken, signer.RootPublicKey())
	require.NoError(t, err)
	assert.Equal(t, "txid-from-node", res.Hash)
	assert.Equal(t, "https://blockstream.info/testnet/tx/txid-from-node", res.Explorer)

	require.Len(t, fake.broadcast, 1)
	raw, err := hex.DecodeString(fake.broadcast[0])
	require.NoError(t, err)
	var msgTx wire.MsgTx
	require.NoError(t, msgTx.Deserialize(bytes.NewReader(raw)))

	require.Len(t, msgTx.TxIn, 2)
	assert.Equal(t, 2, signer.Calls())

	fromAddr, err := ParseAddress(from.Address, &chaincfg.TestNet3Params)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(fromAddr)
	require.NoError(t, err)

	values := map[string]int64{txA: 6000, txB: 8000}
	for i, in := range msgTx.TxIn {
		amount := values[in.PreviousOutPoint.Hash.String()]
		require.NotZero(t, amount)
		vm, err := txscript.NewEngine(pkScript, &msgTx, i, txscript.StandardVerifyFlags, nil, nil, amount,
			txscript.NewCannedPrevOutputFetcher(pkScript, amount))
		require.NoError(t, err)
		require.NoError(t, vm.Execute(), "input %d", i)
	}

	fee := EstimateFee(2, 2, 2.0)
	require.Len(t, msgTx.TxOut, 2)
	assert.Equal(t, int64(10000), msgTx.TxOut[0].Value)
	assert.Equal(t, int64(14000-10000)-fee, msgTx.TxOut[1].Value)
	assert.Equal(t, pkScript, msgTx.TxOut[1].PkScript)
}

func TestHandleTransactionInsufficientFunds(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)
	fake, srv := newFakeEsplora(t, `[{"txid":"`+strings.Repeat("ab", 32)+`","vout":0,"value":1000}]`)
	b := newTestBitcoin(t, srv, signer)

	to, err := b.DeriveProductionAddress("other", signer.RootPublicKey())
	require.NoError(t, err)

	_, err = b.HandleTransaction(context.Background(), Transfer{To: to.Address, Value: "0.01"}, testToken, signer.RootPublicKey())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Zero(t, signer.Calls())
	assert.Empty(t, fake.broadcast)
}

func TestHandleTransactionRejectsForeignAddress(t *testing.T) {
	signer, err := mpctest.NewSigner(testContract)
	require.NoError(t, err)
	_, srv := newFakeEsplora(t, `[]`)
	b := newTestBitcoin(t, srv, signer)

	mainnet, err := DeriveProductionAddress(testContract, "x", signer.RootPublicKey(), &chaincfg.MainNetParams)
	require.NoError(t, err)

	_, err = b.HandleTransaction(context.Background(), Transfer{To: mainnet.Address, Value: "0.001"}, testToken, signer.RootPublicKey())
	assert.Error(t, err)
}
