package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
)

// Store persists wallet records as one JSON file per wallet.
//
//	<dir>/<pubkey>.json                  main wallets
//	<dir>/temp/temp-<tag>-<pubkey>.json  ephemeral wallets
type Store struct {
	dir string
}

type walletFile struct {
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
}

// NewStore opens (and creates if needed) a wallet directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, config.TempWalletDir), config.WalletDirMode); err != nil {
		return nil, fmt.Errorf("create wallet directory %q: %w", dir, err)
	}
	slog.Debug("wallet store opened", "dir", dir)
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// SaveMain durably writes a main wallet.
func (s *Store) SaveMain(rec models.WalletRecord) (string, error) {
	rec.Role = models.RoleMain
	rec.PoolTag = ""
	path := filepath.Join(s.dir, rec.PublicKey+config.WalletFileExt)
	if err := s.write(path, rec); err != nil {
		return "", err
	}
	slog.Info("main wallet saved", "address", rec.PublicKey, "path", path)
	return path, nil
}

// SaveEphemeral durably writes an ephemeral wallet under its pool tag.
// The file is fsynced before SaveEphemeral returns.
func (s *Store) SaveEphemeral(rec models.WalletRecord) (string, error) {
	if rec.PoolTag == "" {
		return "", fmt.Errorf("ephemeral wallet %s has no pool tag: %w", rec.PublicKey, config.ErrInvalidWalletFile)
	}
	if strings.Contains(rec.PoolTag, string(filepath.Separator)) {
		return "", fmt.Errorf("pool tag %q contains a path separator: %w", rec.PoolTag, config.ErrInvalidWalletFile)
	}
	rec.Role = models.RoleEphemeral
	name := config.TempWalletPrefix + rec.PoolTag + "-" + rec.PublicKey + config.WalletFileExt
	path := filepath.Join(s.dir, config.TempWalletDir, name)
	if err := s.write(path, rec); err != nil {
		return "", err
	}
	slog.Debug("ephemeral wallet saved", "address", rec.PublicKey, "poolTag", rec.PoolTag)
	return path, nil
}

// ListMain returns all main wallets in file name order.
func (s *Store) ListMain() ([]models.WalletRecord, error) {
	return s.list(s.dir, models.RoleMain, "")
}

// ListEphemeral returns ephemeral wallets, filtered by pool tag unless tag is empty.
func (s *Store) ListEphemeral(tag string) ([]models.WalletRecord, error) {
	return s.list(filepath.Join(s.dir, config.TempWalletDir), models.RoleEphemeral, tag)
}

// FindMain loads the main wallet with the given public key.
func (s *Store) FindMain(publicKey string) (models.WalletRecord, error) {
	rec, err := s.Load(filepath.Join(s.dir, publicKey+config.WalletFileExt))
	if errors.Is(err, os.ErrNotExist) {
		return models.WalletRecord{}, fmt.Errorf("main wallet %s: %w", publicKey, config.ErrWalletNotFound)
	}
	if err != nil {
		return models.WalletRecord{}, err
	}
	rec.Role = models.RoleMain
	return rec, nil
}

// Load reads one wallet file and checks that its keys belong together.
func (s *Store) Load(path string) (models.WalletRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.WalletRecord{}, fmt.Errorf("read wallet file %q: %w", path, err)
	}

	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return models.WalletRecord{}, fmt.Errorf("parse wallet file %q: %w", path, config.ErrInvalidWalletFile)
	}

	rec := models.WalletRecord{PublicKey: wf.PublicKey, SecretKey: wf.SecretKey}
	if _, err := PrivateKey(rec); err != nil {
		return models.WalletRecord{}, fmt.Errorf("wallet file %q: %w", path, err)
	}

	if tag, ok := parseEphemeralName(filepath.Base(path)); ok {
		rec.Role = models.RoleEphemeral
		rec.PoolTag = tag
	}
	return rec, nil
}

func (s *Store) list(dir string, role models.WalletRole, tag string) ([]models.WalletRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list wallets in %q: %w", dir, err)
	}

	var out []models.WalletRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, config.WalletFileExt) {
			continue
		}

		entryTag, isTemp := parseEphemeralName(name)
		if isTemp != (role == models.RoleEphemeral) {
			continue
		}
		if tag != "" && entryTag != tag {
			continue
		}

		rec, err := s.Load(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("skipping unreadable wallet file", "file", name, "error", err)
			continue
		}
		rec.Role = role
		out = append(out, rec)
	}

	slog.Debug("wallets listed", "role", role, "poolTag", tag, "count", len(out))
	return out, nil
}

// write stores rec at path via a synced temp file and rename.
func (s *Store) write(path string, rec models.WalletRecord) error {
	if _, err := PrivateKey(rec); err != nil {
		return fmt.Errorf("refusing to persist wallet: %w", err)
	}

	data, err := json.MarshalIndent(walletFile{PublicKey: rec.PublicKey, SecretKey: rec.SecretKey}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode wallet %s: %w", rec.PublicKey, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wallet-*")
	if err != nil {
		return fmt.Errorf("create temp wallet file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(config.WalletFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod wallet file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write wallet file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync wallet file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close wallet file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename wallet file to %q: %w", path, err)
	}

	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open wallet directory for sync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync wallet directory: %w", err)
	}
	return nil
}

// parseEphemeralName extracts the pool tag from temp-<tag>-<pubkey>.json.
func parseEphemeralName(name string) (string, bool) {
	if !strings.HasPrefix(name, config.TempWalletPrefix) || !strings.HasSuffix(name, config.WalletFileExt) {
		return "", false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, config.TempWalletPrefix), config.WalletFileExt)
	i := strings.LastIndex(body, "-")
	if i <= 0 || i == len(body)-1 {
		return "", false
	}
	return body[:i], true
}
