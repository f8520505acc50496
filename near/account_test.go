package near

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/chinmay1088/meridian/api"
	"github.com/chinmay1088/meridian/logger"
)

type fakeNode struct {
	mu        sync.Mutex
	broadcast [][]byte
	blockHash [32]byte
	handlers  map[string]func(params gjson.Result) string
}

func newFakeNode(t *testing.T) (*fakeNode, *Client) {
	t.Helper()
	node := &fakeNode{handlers: map[string]func(gjson.Result) string{}}
	for i := range node.blockHash {
		node.blockHash[i] = byte(i)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := gjson.ParseBytes(body)
		method := req.Get("method").String()
		params := req.Get("params")

		key := method
		if method == "query" {
			key = params.Get("request_type").String()
		}

		node.mu.Lock()
		handler, ok := node.handlers[key]
		if method == "broadcast_tx_commit" {
			raw, _ := base64.StdEncoding.DecodeString(params.Array()[0].String())
			node.broadcast = append(node.broadcast, raw)
		}
		node.mu.Unlock()

		if !ok {
			io.WriteString(w, `{"jsonrpc":"2.0","id":"x","error":{"name":"REQUEST_VALIDATION_ERROR","code":-32601,"message":"Method not found"}}`)
			return
		}
		io.WriteString(w, `{"jsonrpc":"2.0","id":"`+req.Get("id").String()+`","result":`+handler(params)+`}`)
	}))
	t.Cleanup(srv.Close)

	return node, NewClient(api.NewClient(0), srv.URL, logger.Nop())
}

func (n *fakeNode) on(key string, handler func(params gjson.Result) string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[key] = handler
}

func testKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := ParseSeedPhrase(testPhrase)
	require.NoError(t, err)
	return kp
}

func TestTransactionSerialize(t *testing.T) {
	pub := bytes.Repeat([]byte{1}, 32)
	tx := &Transaction{
		SignerID:   "a",
		PublicKey:  pub,
		Nonce:      5,
		ReceiverID: "b",
		Actions: []FunctionCallAction{{
			MethodName: "m",
			Args:       []byte("{}"),
			Gas:        7,
			Deposit:    big.NewInt(1),
		}},
	}
	for i := range tx.BlockHash {
		tx.BlockHash[i] = 2
	}

	var want bytes.Buffer
	le := binary.LittleEndian
	want.Write(le.AppendUint32(nil, 1))
	want.WriteString("a")
	want.WriteByte(0)
	want.Write(pub)
	want.Write(le.AppendUint64(nil, 5))
	want.Write(le.AppendUint32(nil, 1))
	want.WriteString("b")
	want.Write(bytes.Repeat([]byte{2}, 32))
	want.Write(le.AppendUint32(nil, 1))
	want.WriteByte(2)
	want.Write(le.AppendUint32(nil, 1))
	want.WriteString("m")
	want.Write(le.AppendUint32(nil, 2))
	want.WriteString("{}")
	want.Write(le.AppendUint64(nil, 7))
	want.Write(le.AppendUint64(nil, 1))
	want.Write(le.AppendUint64(nil, 0))

	got, err := tx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, want.Bytes(), got)
}

func TestTransactionLargeDeposit(t *testing.T) {
	deposit := new(big.Int).Lsh(big.NewInt(3), 64)
	deposit.Add(deposit, big.NewInt(9))

	tx := &Transaction{
		PublicKey: bytes.Repeat([]byte{1}, 32),
		Actions:   []FunctionCallAction{{MethodName: "x", Deposit: deposit}},
	}
	got, err := tx.Serialize()
	require.NoError(t, err)

	tail := got[len(got)-16:]
	assert.Equal(t, uint64(9), binary.LittleEndian.Uint64(tail[:8]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(tail[8:]))

	tx.Actions[0].Deposit = new(big.Int).Lsh(big.NewInt(1), 128)
	_, err = tx.Serialize()
	assert.Error(t, err)
}

func TestSignTransaction(t *testing.T) {
	kp := testKeyPair(t)
	tx := &Transaction{SignerID: "alice", PublicKey: kp.PublicKey(), ReceiverID: "bob"}

	signed, hash, err := SignTransaction(tx, kp)
	require.NoError(t, err)

	encoded, err := tx.Serialize()
	require.NoError(t, err)
	assert.Equal(t, sha256.Sum256(encoded), hash)
	require.Len(t, signed, len(encoded)+1+ed25519.SignatureSize)
	assert.Equal(t, encoded, signed[:len(encoded)])
	assert.Equal(t, byte(0), signed[len(encoded)])
	assert.True(t, ed25519.Verify(kp.PublicKey(), hash[:], signed[len(encoded)+1:]))
}

func TestFunctionCall(t *testing.T) {
	node, client := newFakeNode(t)
	kp := testKeyPair(t)
	account := NewAccount(client, "alice.testnet", kp)

	node.on("view_access_key", func(params gjson.Result) string {
		assert.Equal(t, "alice.testnet", params.Get("account_id").String())
		assert.Equal(t, kp.PublicKeyString(), params.Get("public_key").String())
		return `{"nonce":10,"permission":"FullAccess","block_hash":"` + base58.Encode(node.blockHash[:]) + `"}`
	})
	node.on("broadcast_tx_commit", func(gjson.Result) string {
		value := base64.StdEncoding.EncodeToString([]byte(`"ok"`))
		return `{"status":{"SuccessValue":"` + value + `"},"transaction":{"hash":"H"}}`
	})

	out, err := account.FunctionCall(context.Background(), FunctionCallRequest{
		ContractID: "mcs-demo.testnet",
		MethodName: "add_derivation_path",
		Args:       map[string]string{"alias": "main"},
		Deposit:    MustParseNearAmount("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(out))

	require.Len(t, node.broadcast, 1)
	signed := node.broadcast[0]
	encoded := signed[:len(signed)-1-ed25519.SignatureSize]

	expected := &Transaction{
		SignerID:   "alice.testnet",
		PublicKey:  kp.PublicKey(),
		Nonce:      11,
		ReceiverID: "mcs-demo.testnet",
		BlockHash:  node.blockHash,
		Actions: []FunctionCallAction{{
			MethodName: "add_derivation_path",
			Args:       []byte(`{"alias":"main"}`),
			Gas:        DefaultFunctionCallGas,
			Deposit:    MustParseNearAmount("0.01"),
		}},
	}
	want, err := expected.Serialize()
	require.NoError(t, err)
	assert.Equal(t, want, encoded)

	hash := sha256.Sum256(encoded)
	assert.True(t, ed25519.Verify(kp.PublicKey(), hash[:], signed[len(signed)-ed25519.SignatureSize:]))
}

func TestFunctionCallFailure(t *testing.T) {
	node, client := newFakeNode(t)
	account := NewAccount(client, "alice.testnet", testKeyPair(t))

	node.on("view_access_key", func(gjson.Result) string {
		return `{"nonce":1,"block_hash":"` + base58.Encode(node.blockHash[:]) + `"}`
	})
	node.on("broadcast_tx_commit", func(gjson.Result) string {
		return `{"status":{"Failure":{"ActionError":{"kind":"FunctionCallError"}}},"transaction":{"hash":"H"}}`
	})

	_, err := account.FunctionCall(context.Background(), FunctionCallRequest{ContractID: "c", MethodName: "m"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "TransactionFailure", rpcErr.Name)
	assert.Contains(t, rpcErr.Message, "FunctionCallError")
}

func TestViewFunction(t *testing.T) {
	node, client := newFakeNode(t)
	account := NewAccount(client, "alice.testnet", testKeyPair(t))

	node.on("call_function", func(params gjson.Result) string {
		args, _ := base64.StdEncoding.DecodeString(params.Get("args_base64").String())
		assert.JSONEq(t, `{"account_id":"alice.testnet"}`, string(args))
		assert.Equal(t, "nft_tokens_for_owner", params.Get("method_name").String())

		var ints []int
		for _, b := range []byte(`[{"token_id":"1"}]`) {
			ints = append(ints, int(b))
		}
		encoded, _ := json.Marshal(ints)
		return `{"result":` + string(encoded) + `,"logs":[]}`
	})

	var tokens []struct {
		TokenID string `json:"token_id"`
	}
	err := account.ViewFunction(context.Background(), "mcs-demo.testnet", "nft_tokens_for_owner",
		map[string]string{"account_id": "alice.testnet"}, &tokens)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "1", tokens[0].TokenID)
}

func TestViewFunctionQueryError(t *testing.T) {
	node, client := newFakeNode(t)
	account := NewAccount(client, "alice.testnet", testKeyPair(t))

	node.on("call_function", func(gjson.Result) string {
		return `{"error":"wasm execution failed with error: MethodNotFound","logs":[]}`
	})

	err := account.ViewFunction(context.Background(), "c", "missing", nil, nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Contains(t, rpcErr.Message, "MethodNotFound")
}

func TestBalance(t *testing.T) {
	node, client := newFakeNode(t)
	account := NewAccount(client, "alice.testnet", testKeyPair(t))

	node.on("view_account", func(gjson.Result) string {
		return `{"amount":"5000000000000000000000000","locked":"0","storage_usage":182,"code_hash":"11111111111111111111111111111111","block_hash":"x"}`
	})

	balance, err := account.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.99818", FormatNearAmount(balance.Available))
	assert.Equal(t, "5", FormatNearAmount(balance.Total))
	assert.Equal(t, "0.00182", FormatNearAmount(balance.StateStaked))
}

func TestBalanceLockedExceedsStorage(t *testing.T) {
	b := computeBalance(&AccountView{
		Amount:       MustParseNearAmount("2"),
		Locked:       MustParseNearAmount("1"),
		StorageUsage: 100,
	})
	assert.Equal(t, "2", FormatNearAmount(b.Available))
}

func TestRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jsonrpc":"2.0","id":"1","error":{"name":"HANDLER_ERROR","cause":{"name":"UNKNOWN_ACCOUNT","info":{}},"code":-32000,"message":"Server error","data":"account ghost does not exist"}}`)
	}))
	defer srv.Close()
	client := NewClient(api.NewClient(0), srv.URL, logger.Nop())

	_, err := client.ViewAccount(context.Background(), "ghost")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "HANDLER_ERROR", rpcErr.Name)
	assert.Equal(t, "UNKNOWN_ACCOUNT", rpcErr.Cause)
	assert.Equal(t, int64(-32000), rpcErr.Code)
}
