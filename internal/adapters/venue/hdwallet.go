package venue

// hdwallet.go derives the account-#0 signing key from a BIP-39 mnemonic, the
// same derivation executor.py's _private_key_from_secret delegates to
// eth_account.Account.from_mnemonic for. The retrieval pack carries no BIP-39
// wordlist/BIP-32 library, so this is built directly on primitives the pack
// already imports: golang.org/x/crypto/pbkdf2 for the BIP-39 seed and
// stdlib crypto/hmac+sha512 plus go-ethereum's secp256k1 curve for BIP-32
// child-key derivation along m/44'/60'/0'/0/0.

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const hardenedOffset = 0x80000000

// derivationPath is m/44'/60'/0'/0/0 — Ethereum's standard account-0 path.
var derivationPath = []uint32{44 + hardenedOffset, 60 + hardenedOffset, 0 + hardenedOffset, 0, 0}

type extendedKey struct {
	key       []byte // 32-byte private scalar
	chainCode []byte // 32 bytes
}

// deriveAccountZero turns a (normalized, space-joined) BIP-39 mnemonic into
// the private key at m/44'/60'/0'/0/0, with no BIP-39 passphrase.
func deriveAccountZero(mnemonic string) (*ecdsa.PrivateKey, error) {
	seed := pbkdf2.Key([]byte(mnemonic), []byte("mnemonic"), 2048, 64, sha512.New)

	master := hmacSHA512([]byte("Bitcoin seed"), seed)
	ext := extendedKey{key: master[:32], chainCode: master[32:]}

	var err error
	for _, idx := range derivationPath {
		ext, err = deriveChild(ext, idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}

	key, err := crypto.ToECDSA(ext.key)
	if err != nil {
		return nil, fmt.Errorf("key from derived scalar: %w", err)
	}
	return key, nil
}

func deriveChild(parent extendedKey, index uint32) (extendedKey, error) {
	var data []byte
	if index >= hardenedOffset {
		data = append([]byte{0x00}, parent.key...)
	} else {
		data = compressedPubkey(parent.key)
	}
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)
	data = append(data, idxBuf[:]...)

	i := hmacSHA512(parent.chainCode, data)
	il, ir := i[:32], i[32:]

	n := crypto.S256().Params().N
	childInt := new(big.Int).Add(new(big.Int).SetBytes(il), new(big.Int).SetBytes(parent.key))
	childInt.Mod(childInt, n)
	if childInt.Sign() == 0 {
		return extendedKey{}, fmt.Errorf("derived zero key, invalid path")
	}

	childKey := make([]byte, 32)
	childInt.FillBytes(childKey)
	return extendedKey{key: childKey, chainCode: ir}, nil
}

func compressedPubkey(priv []byte) []byte {
	curve := crypto.S256()
	x, y := curve.ScalarBaseMult(priv)
	out := make([]byte, 33)
	if y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xb := x.Bytes()
	copy(out[1+(32-len(xb)):], xb)
	return out
}

func hmacSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
