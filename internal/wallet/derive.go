package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/mr-tron/base58"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
)

const (
	slip10Curve    = "ed25519 seed"
	hardenedOffset = uint32(0x80000000)
)

// slip10Key holds a SLIP-10 ed25519 key pair (private key seed + chain code).
type slip10Key struct {
	key       []byte // 32 bytes, raw ed25519 seed
	chainCode []byte // 32 bytes
}

// DeriveSOLPrivateKey derives the ed25519 private key at m/44'/501'/index'/0'
// (all hardened, Phantom/Solflare standard).
func DeriveSOLPrivateKey(seed []byte, index uint32) (ed25519.PrivateKey, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("seed length %d: %w", len(seed), ErrDerivation)
	}
	if index >= config.MainWalletMaxIndex {
		return nil, fmt.Errorf("account index %d out of range: %w", index, ErrDerivation)
	}

	key, chainCode := slip10MasterKeyFromSeed(seed)
	current := slip10Key{key: key, chainCode: chainCode}

	segments := []uint32{
		44 + hardenedOffset,
		501 + hardenedOffset,
		index + hardenedOffset,
		0 + hardenedOffset,
	}
	for _, seg := range segments {
		current = slip10DeriveChild(current, seg)
	}

	slog.Debug("derived SOL key", "path", formatDerivationPathSOL(index))
	return ed25519.NewKeyFromSeed(current.key), nil
}

// DeriveSOLAddress derives the base58 Solana address at the given account index.
func DeriveSOLAddress(seed []byte, index uint32) (string, error) {
	priv, err := DeriveSOLPrivateKey(seed, index)
	if err != nil {
		return "", err
	}
	return base58.Encode(priv.Public().(ed25519.PublicKey)), nil
}

// DeriveMainWallet derives a main wallet record from a BIP-39 mnemonic.
func DeriveMainWallet(mnemonic string, index uint32) (models.WalletRecord, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return models.WalletRecord{}, err
	}

	seed, err := MnemonicToSeed(mnemonic)
	if err != nil {
		return models.WalletRecord{}, err
	}

	priv, err := DeriveSOLPrivateKey(seed, index)
	if err != nil {
		return models.WalletRecord{}, fmt.Errorf("derive main wallet at %s: %w", formatDerivationPathSOL(index), err)
	}

	rec := NewRecord(priv, models.RoleMain, "")
	slog.Info("main wallet derived from mnemonic",
		"path", formatDerivationPathSOL(index),
		"address", rec.PublicKey,
	)
	return rec, nil
}

// slip10DeriveChild performs SLIP-10 hardened child key derivation for ed25519.
// data = 0x00 || parent_key (32 bytes) || index (4 bytes big-endian)
func slip10DeriveChild(parent slip10Key, index uint32) slip10Key {
	data := make([]byte, 0, 37)
	data = append(data, 0x00)
	data = append(data, parent.key...)

	var indexBytes [4]byte
	binary.BigEndian.PutUint32(indexBytes[:], index)
	data = append(data, indexBytes[:]...)

	mac := hmac.New(sha512.New, parent.chainCode)
	mac.Write(data)
	I := mac.Sum(nil)

	return slip10Key{
		key:       I[:32],
		chainCode: I[32:],
	}
}

// slip10MasterKeyFromSeed computes HMAC-SHA512(Key="ed25519 seed", Data=seed).
func slip10MasterKeyFromSeed(seed []byte) (privateKey []byte, chainCode []byte) {
	mac := hmac.New(sha512.New, []byte(slip10Curve))
	mac.Write(seed)
	I := mac.Sum(nil)
	return I[:32], I[32:]
}

// slip10DeriveChildFromRaw derives a child key from raw key + chain code at the given index.
func slip10DeriveChildFromRaw(key, chainCode []byte, index uint32) (childKey []byte, childChainCode []byte) {
	child := slip10DeriveChild(slip10Key{key: key, chainCode: chainCode}, index)
	return child.key, child.chainCode
}

// formatDerivationPathSOL returns the derivation path string for logging.
func formatDerivationPathSOL(index uint32) string {
	return fmt.Sprintf("m/44'/501'/%d'/0'", index)
}
