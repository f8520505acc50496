package near

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const hardenedOffset = 0x80000000

// hdKey is a SLIP-10 ed25519 node. ed25519 only supports hardened children.
type hdKey struct {
	PrivateKey []byte
	ChainCode  []byte
	Depth      uint8
	ChildNum   uint32
}

// newMasterKey creates the SLIP-10 master node from a BIP-39 seed
func newMasterKey(seed []byte) *hdKey {
	hash := hmacSHA512([]byte("ed25519 seed"), seed)
	return &hdKey{
		PrivateKey: hash[:32],
		ChainCode:  hash[32:],
	}
}

// deriveChild derives a hardened child node
func deriveChild(parent *hdKey, childNum uint32) (*hdKey, error) {
	if !isHardened(childNum) {
		return nil, fmt.Errorf("ed25519 derivation requires hardened index, got %d", childNum)
	}

	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, parent.PrivateKey...)
	data = binary.BigEndian.AppendUint32(data, childNum)

	hash := hmacSHA512(parent.ChainCode, data)
	return &hdKey{
		PrivateKey: hash[:32],
		ChainCode:  hash[32:],
		Depth:      parent.Depth + 1,
		ChildNum:   childNum,
	}, nil
}

// derivePath walks path ("m/44'/397'/0'") from the seed's master node
func derivePath(seed []byte, path string) (*hdKey, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] != "m" {
		return nil, fmt.Errorf("invalid derivation path %q", path)
	}

	key := newMasterKey(seed)
	for _, part := range parts[1:] {
		childNum, err := parseChildNum(part)
		if err != nil {
			return nil, fmt.Errorf("failed to parse child number: %w", err)
		}
		key, err = deriveChild(key, childNum)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child: %w", err)
		}
	}
	return key, nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func isHardened(childNum uint32) bool {
	return childNum >= hardenedOffset
}

func parseChildNum(childStr string) (uint32, error) {
	hardened := strings.HasSuffix(childStr, "'")
	if hardened {
		childStr = childStr[:len(childStr)-1]
	}

	n, err := strconv.ParseUint(childStr, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid path segment %q: %w", childStr, err)
	}

	childNum := uint32(n)
	if hardened {
		childNum += hardenedOffset
	}
	return childNum, nil
}
