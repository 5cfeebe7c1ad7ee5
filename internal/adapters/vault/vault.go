// Package vault implements ports.Vault: PBKDF2-HMAC-SHA256 key derivation
// feeding a SHA-256 counter-mode XOR stream and an HMAC-SHA256 auth tag,
// exactly as backend/repositories/vault.py does it. golang.org/x/crypto/pbkdf2
// supplies the KDF; everything downstream is stdlib crypto/hmac and
// crypto/sha256, matching the original's reach for hashlib/hmac rather than a
// heavier AEAD the teacher pack never imports.
package vault

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/alejandrodnm/mirrorcore/internal/ports"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 200_000
	saltSize         = 16
	nonceSize        = 16
	derivedKeyLen    = 64 // 32 bytes enc key + 32 bytes mac key
)

var validMnemonicWordCounts = map[int]bool{12: true, 15: true, 18: true, 21: true, 24: true}

// ErrMACMismatch is returned by GetSecret when the stored auth tag doesn't
// verify under the supplied passphrase.
var ErrMACMismatch = errors.New("vault: mac mismatch")

// Vault implements ports.Vault against a ports.VaultStore.
type Vault struct {
	store ports.VaultStore
}

func New(store ports.VaultStore) *Vault {
	return &Vault{store: store}
}

func (v *Vault) AddKey(ctx context.Context, keyRef, mnemonic, passphrase string) error {
	if !strings.HasPrefix(keyRef, "vault://") {
		return fmt.Errorf("vault.AddKey: key_ref must start with vault://, got %q", keyRef)
	}
	normalized := normalizeMnemonic(mnemonic)
	if err := validateMnemonic(normalized); err != nil {
		return fmt.Errorf("vault.AddKey: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("vault.AddKey: generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("vault.AddKey: generate nonce: %w", err)
	}

	encKey, macKey := deriveKeys(passphrase, salt)
	plaintext := []byte(normalized)
	ciphertext := xorStream(plaintext, encKey, nonce)
	mac := hmac.New(sha256.New, macKey)
	mac.Write(nonce)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	blob := ports.VaultBlob{
		CiphertextB64: base64.StdEncoding.EncodeToString(ciphertext),
		SaltB64:       base64.StdEncoding.EncodeToString(salt),
		NonceB64:      base64.StdEncoding.EncodeToString(nonce),
		MacB64:        base64.StdEncoding.EncodeToString(tag),
	}
	if err := v.store.UpsertVaultKey(ctx, keyRef, blob); err != nil {
		return fmt.Errorf("vault.AddKey: store: %w", err)
	}
	return nil
}

func (v *Vault) GetSecret(ctx context.Context, keyRef, passphrase string) (string, error) {
	blob, ok, err := v.store.GetVaultKey(ctx, keyRef)
	if err != nil {
		return "", fmt.Errorf("vault.GetSecret: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("vault.GetSecret: no active key for %q", keyRef)
	}

	salt, err := base64.StdEncoding.DecodeString(blob.SaltB64)
	if err != nil {
		return "", fmt.Errorf("vault.GetSecret: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(blob.NonceB64)
	if err != nil {
		return "", fmt.Errorf("vault.GetSecret: decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(blob.CiphertextB64)
	if err != nil {
		return "", fmt.Errorf("vault.GetSecret: decode ciphertext: %w", err)
	}
	expectedMAC, err := base64.StdEncoding.DecodeString(blob.MacB64)
	if err != nil {
		return "", fmt.Errorf("vault.GetSecret: decode mac: %w", err)
	}

	encKey, macKey := deriveKeys(passphrase, salt)
	mac := hmac.New(sha256.New, macKey)
	mac.Write(nonce)
	mac.Write(ciphertext)
	actualMAC := mac.Sum(nil)
	if !hmac.Equal(expectedMAC, actualMAC) {
		return "", ErrMACMismatch
	}

	plaintext := xorStream(ciphertext, encKey, nonce)
	return string(plaintext), nil
}

func (v *Vault) List(ctx context.Context) ([]ports.VaultKeyMeta, error) {
	keys, err := v.store.ListVaultKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("vault.List: %w", err)
	}
	return keys, nil
}

// deriveKeys runs PBKDF2-HMAC-SHA256 and splits the 64-byte output into a
// 32-byte encryption key and a 32-byte MAC key.
func deriveKeys(passphrase string, salt []byte) (encKey, macKey []byte) {
	material := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, derivedKeyLen, sha256.New)
	return material[:32], material[32:]
}

// xorStream encrypts (or decrypts, being its own inverse) data against a
// SHA-256 counter-mode keystream: block_i = sha256(key || nonce || be32(i)).
func xorStream(data, key, nonce []byte) []byte {
	out := make([]byte, len(data))
	var counter uint32
	produced := 0
	for produced < len(data) {
		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], counter)
		h := sha256.New()
		h.Write(key)
		h.Write(nonce)
		h.Write(ctr[:])
		block := h.Sum(nil)

		n := copy(out[produced:], block)
		for i := 0; i < n; i++ {
			out[produced+i] ^= data[produced+i]
		}
		produced += n
		counter++
	}
	return out
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

func validateMnemonic(mnemonic string) error {
	words := strings.Fields(mnemonic)
	if !validMnemonicWordCounts[len(words)] {
		return errors.New("mnemonic word count must be one of 12/15/18/21/24")
	}
	return nil
}
