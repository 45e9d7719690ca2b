package wallet

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// mnemonicEntropyBits maps accepted word counts to BIP-39 entropy sizes.
var mnemonicEntropyBits = map[int]int{
	12: 128,
	24: 256,
}

// ValidateMnemonic validates a BIP-39 mnemonic phrase of 12 or 24 words.
func ValidateMnemonic(mnemonic string) error {
	words := strings.Fields(mnemonic)
	if _, ok := mnemonicEntropyBits[len(words)]; !ok {
		return fmt.Errorf("expected 12 or 24 words, got %d: %w", len(words), ErrInvalidMnemonic)
	}

	if !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return fmt.Errorf("validate mnemonic: %w", ErrInvalidMnemonic)
	}

	slog.Debug("mnemonic validated", "wordCount", len(words))
	return nil
}

// NewMnemonic generates a fresh BIP-39 phrase with the given word count.
func NewMnemonic(words int) (string, error) {
	bits, ok := mnemonicEntropyBits[words]
	if !ok {
		return "", fmt.Errorf("unsupported word count %d: %w", words, ErrInvalidMnemonic)
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("encode mnemonic: %w", err)
	}
	return mnemonic, nil
}

// MnemonicToSeed converts a BIP-39 mnemonic to a 64-byte seed (empty passphrase).
func MnemonicToSeed(mnemonic string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(strings.Join(strings.Fields(mnemonic), " "), "")
	if err != nil {
		return nil, fmt.Errorf("mnemonic to seed: %w", err)
	}

	slog.Debug("seed derived from mnemonic", "seedLen", len(seed))
	return seed, nil
}

// ReadMnemonicFromFile reads a mnemonic from a file, trims whitespace, and validates it.
func ReadMnemonicFromFile(path string) (string, error) {
	slog.Info("reading mnemonic from file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read mnemonic file %q: %w", path, err)
	}

	mnemonic := strings.TrimSpace(string(data))
	if mnemonic == "" {
		return "", fmt.Errorf("mnemonic file %q is empty: %w", path, ErrInvalidMnemonic)
	}

	if err := ValidateMnemonic(mnemonic); err != nil {
		return "", fmt.Errorf("mnemonic file %q: %w", path, err)
	}

	slog.Info("mnemonic read and validated from file")
	return mnemonic, nil
}
