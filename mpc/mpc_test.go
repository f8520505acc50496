package mpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/near"
)

const testnetRootKey = "secp256k1:4HFcTSodRLVCGNVcGc4Mf2fwBBBxv9jxkGdiW2S2CA1y6UpVVRWKj6RX7d7TDt65k2Bj3w9FU4BGtt43ZvuhCnNt"

func TestParseRootPublicKey(t *testing.T) {
	pub, err := ParseRootPublicKey(testnetRootKey)
	require.NoError(t, err)
	assert.Equal(t, testnetRootKey, FormatRootPublicKey(pub))

	_, err = ParseRootPublicKey("ed25519:abc")
	assert.Error(t, err)
	_, err = ParseRootPublicKey("secp256k1:3mJr7AoUXx2Wqd")
	assert.Error(t, err)
}

func TestDeriveEpsilon(t *testing.T) {
	want := sha3.Sum256([]byte("near-mpc-recovery v0.1.0 epsilon derivation:mcs-demo.testnet,1"))
	assert.Equal(t, new(big.Int).SetBytes(want[:]).Text(16),
		DeriveEpsilon("mcs-demo.testnet", "1").Text(16))
}

func TestDeriveChildPublicKeyDeterministic(t *testing.T) {
	root, err := ParseRootPublicKey(testnetRootKey)
	require.NoError(t, err)

	a := DeriveChildPublicKey(root, "mcs-demo.testnet", `{"chain":60,"meta":{"id":0}}`)
	b := DeriveChildPublicKey(root, "mcs-demo.testnet", `{"chain":60,"meta":{"id":0}}`)
	assert.Equal(t, crypto.FromECDSAPub(a), crypto.FromECDSAPub(b))
	assert.True(t, crypto.S256().IsOnCurve(a.X, a.Y))

	other := DeriveChildPublicKey(root, "mcs-demo.testnet", `{"chain":60,"meta":{"id":1}}`)
	assert.NotEqual(t, crypto.FromECDSAPub(a), crypto.FromECDSAPub(other))

	otherContract := DeriveChildPublicKey(root, "other.testnet", `{"chain":60,"meta":{"id":0}}`)
	assert.NotEqual(t, crypto.FromECDSAPub(a), crypto.FromECDSAPub(otherContract))
}

func TestDeriveChildMatchesTweakedPrivateKey(t *testing.T) {
	rootPriv, err := crypto.GenerateKey()
	require.NoError(t, err)

	child := DeriveChildPublicKey(&rootPriv.PublicKey, "mcs-demo.testnet", "path")

	d := new(big.Int).Add(rootPriv.D, DeriveEpsilon("mcs-demo.testnet", "path"))
	d.Mod(d, secp256k1N)
	childPriv, err := crypto.ToECDSA(d.FillBytes(make([]byte, 32)))
	require.NoError(t, err)

	assert.Equal(t, crypto.FromECDSAPub(&childPriv.PublicKey), crypto.FromECDSAPub(child))
}

func TestParseSignResultNormalizesS(t *testing.T) {
	r := big.NewInt(12345)
	highS := new(big.Int).Sub(secp256k1N, big.NewInt(7))

	raw, _ := json.Marshal([]string{
		"02" + hex.EncodeToString(r.FillBytes(make([]byte, 32))),
		hex.EncodeToString(highS.FillBytes(make([]byte, 32))),
	})
	sig, err := ParseSignResult(raw)
	require.NoError(t, err)
	assert.Equal(t, r, sig.R)
	assert.Equal(t, big.NewInt(7), sig.S)
	assert.Len(t, sig.Bytes(), 64)

	_, err = ParseSignResult([]byte(`["02ab"]`))
	assert.Error(t, err)
	_, err = ParseSignResult([]byte(`["02zz","01"]`))
	assert.Error(t, err)
}

type fakeCaller struct {
	req near.FunctionCallRequest
	out []byte
	err error
}

func (f *fakeCaller) FunctionCall(_ context.Context, req near.FunctionCallRequest) ([]byte, error) {
	f.req = req
	return f.out, f.err
}

func TestContractSignerReversesPayload(t *testing.T) {
	caller := &fakeCaller{out: []byte(`["03` + hex.EncodeToString(big.NewInt(5).FillBytes(make([]byte, 32))) + `","` + hex.EncodeToString(big.NewInt(9).FillBytes(make([]byte, 32))) + `"]`)}
	signer := NewContractSigner(caller, "mcs-demo.testnet", logger.Nop())

	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i)
	}

	sig, err := signer.Sign(context.Background(), payload, "tok")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), sig.R)
	assert.Equal(t, big.NewInt(9), sig.S)

	assert.Equal(t, "mcs-demo.testnet", caller.req.ContractID)
	assert.Equal(t, "sign", caller.req.MethodName)
	assert.Equal(t, near.DefaultFunctionCallGas, caller.req.Gas)
	assert.Equal(t, 0, caller.req.Deposit.Sign())

	args, err := json.Marshal(caller.req.Args)
	require.NoError(t, err)
	var decoded struct {
		TokenID    string `json:"token_id"`
		Payload    []int  `json:"payload"`
		KeyVersion int    `json:"key_version"`
	}
	require.NoError(t, json.Unmarshal(args, &decoded))
	assert.Equal(t, "tok", decoded.TokenID)
	assert.Equal(t, 31, decoded.Payload[0])
	assert.Equal(t, 0, decoded.Payload[31])
	assert.Equal(t, 0, decoded.KeyVersion)
}

func TestContractSignerNoSignature(t *testing.T) {
	signer := NewContractSigner(&fakeCaller{}, "c", logger.Nop())

	_, err := signer.Sign(context.Background(), make([]byte, 32), "tok")
	assert.ErrorIs(t, err, ErrNoSignature)

	_, err = signer.Sign(context.Background(), make([]byte, 31), "tok")
	assert.Error(t, err)
}
