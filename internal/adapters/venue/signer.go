package venue

// signerFromSecret resolves a vault secret into a signing key, mirroring
// executor.py's _private_key_from_secret: a bare 64-hex-character string is
// used directly as a Polygon private key, anything else is treated as a
// BIP-39 mnemonic and derived to account #0.

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

func signerFromSecret(secret string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimSpace(secret)
	hexPart := strings.TrimPrefix(trimmed, "0x")
	if len(hexPart) == 64 && isHex(hexPart) {
		return crypto.HexToECDSA(hexPart)
	}
	return deriveAccountZero(normalizeMnemonic(trimmed))
}

func normalizeMnemonic(m string) string {
	return strings.Join(strings.Fields(m), " ")
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
