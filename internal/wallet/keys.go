package wallet

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
)

// Generate creates a fresh random keypair record.
func Generate(role models.WalletRole, poolTag string) (models.WalletRecord, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return models.WalletRecord{}, fmt.Errorf("generate keypair: %w", err)
	}
	return NewRecord(priv, role, poolTag), nil
}

// NewRecord wraps an ed25519 private key into a wallet record.
func NewRecord(priv ed25519.PrivateKey, role models.WalletRole, poolTag string) models.WalletRecord {
	return models.WalletRecord{
		PublicKey: base58.Encode(priv.Public().(ed25519.PublicKey)),
		SecretKey: base58.Encode(priv),
		Role:      role,
		PoolTag:   poolTag,
	}
}

// PrivateKey decodes the record's secret and checks it against the public key.
func PrivateKey(rec models.WalletRecord) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(rec.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("decode secret key of %s: %w", rec.PublicKey, config.ErrInvalidWalletFile)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key of %s is %d bytes, want %d: %w",
			rec.PublicKey, len(raw), ed25519.PrivateKeySize, config.ErrInvalidWalletFile)
	}

	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(priv, raw) {
		return nil, fmt.Errorf("secret key of %s: %w", rec.PublicKey, ErrKeyMismatch)
	}

	pub, err := base58.Decode(rec.PublicKey)
	if err != nil || !bytes.Equal(pub, priv.Public().(ed25519.PublicKey)) {
		return nil, fmt.Errorf("wallet %s: %w", rec.PublicKey, ErrKeyMismatch)
	}
	return priv, nil
}

// DecodePublicKey decodes a base58 address into its 32 raw bytes.
func DecodePublicKey(addr string) ([]byte, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", addr, config.ErrInvalidAddress)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%q decodes to %d bytes, want 32: %w", addr, len(raw), config.ErrInvalidAddress)
	}
	return raw, nil
}

// ValidateAddress checks that addr is a wallet address: 32 bytes on the ed25519 curve.
// Program derived addresses are off-curve and rejected.
func ValidateAddress(addr string) error {
	raw, err := DecodePublicKey(addr)
	if err != nil {
		return err
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%q is not on the ed25519 curve: %w", addr, config.ErrInvalidAddress)
	}
	return nil
}

// ValidateMint checks that mint is a 32-byte account key. Mints may be off-curve.
func ValidateMint(mint string) error {
	_, err := DecodePublicKey(mint)
	return err
}
