package ports

import "context"

// Vault is the capability the core consumes: "given a key ref + passphrase,
// produce a signer". The core never sees key material beyond this call.
type Vault interface {
	// AddKey encrypts mnemonic under passphrase and upserts it as keyRef.
	AddKey(ctx context.Context, keyRef, mnemonic, passphrase string) error

	// GetSecret decrypts and returns the mnemonic or hex key stored at keyRef.
	GetSecret(ctx context.Context, keyRef, passphrase string) (string, error)

	// List returns metadata (never secret material) for every stored key ref.
	List(ctx context.Context) ([]VaultKeyMeta, error)
}

// Clock is a unix-seconds time source. SystemClock is its only
// implementation, and no component in this module takes a Clock.
type Clock interface {
	Now() int64 // unix seconds
}
