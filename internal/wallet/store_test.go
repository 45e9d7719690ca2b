package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestStore_SaveAndListMain(t *testing.T) {
	s := newTestStore(t)

	rec, _ := Generate(models.RoleMain, "")
	path, err := s.SaveMain(rec)
	if err != nil {
		t.Fatalf("SaveMain() error = %v", err)
	}
	if filepath.Base(path) != rec.PublicKey+".json" {
		t.Errorf("SaveMain() path = %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != config.WalletFileMode {
		t.Errorf("wallet file mode = %v, want %v", info.Mode().Perm(), os.FileMode(config.WalletFileMode))
	}

	mains, err := s.ListMain()
	if err != nil {
		t.Fatalf("ListMain() error = %v", err)
	}
	if len(mains) != 1 || mains[0].PublicKey != rec.PublicKey || mains[0].SecretKey != rec.SecretKey {
		t.Fatalf("ListMain() = %+v", mains)
	}

	found, err := s.FindMain(rec.PublicKey)
	if err != nil {
		t.Fatalf("FindMain() error = %v", err)
	}
	if found.Role != models.RoleMain {
		t.Errorf("FindMain() role = %s", found.Role)
	}
}

func TestStore_FindMainNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindMain("HAgk14JpMQLgt6rVgv7cBQFJWFto5Dqxi472uT3DKpqk")
	if !errors.Is(err, config.ErrWalletNotFound) {
		t.Errorf("FindMain() error = %v, want ErrWalletNotFound", err)
	}
}

func TestStore_Ephemeral(t *testing.T) {
	s := newTestStore(t)

	mintA := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	mintB := "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

	for _, tag := range []string{mintA, mintA, mintB} {
		rec, _ := Generate(models.RoleEphemeral, tag)
		path, err := s.SaveEphemeral(rec)
		if err != nil {
			t.Fatalf("SaveEphemeral() error = %v", err)
		}
		want := "temp-" + tag + "-" + rec.PublicKey + ".json"
		if filepath.Base(path) != want {
			t.Errorf("SaveEphemeral() file = %s, want %s", filepath.Base(path), want)
		}
	}

	all, err := s.ListEphemeral("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("ListEphemeral(\"\") = %d wallets, want 3", len(all))
	}

	onlyA, err := s.ListEphemeral(mintA)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyA) != 2 {
		t.Fatalf("ListEphemeral(mintA) = %d wallets, want 2", len(onlyA))
	}
	for _, w := range onlyA {
		if w.PoolTag != mintA || w.Role != models.RoleEphemeral {
			t.Errorf("ListEphemeral(mintA) returned %s tag %s role %s", w.PublicKey, w.PoolTag, w.Role)
		}
	}

	mains, _ := s.ListMain()
	if len(mains) != 0 {
		t.Errorf("ListMain() = %d wallets, ephemeral wallets leaked into main listing", len(mains))
	}
}

func TestStore_SaveEphemeralRequiresTag(t *testing.T) {
	s := newTestStore(t)
	rec, _ := Generate(models.RoleEphemeral, "")
	if _, err := s.SaveEphemeral(rec); !errors.Is(err, config.ErrInvalidWalletFile) {
		t.Errorf("SaveEphemeral(no tag) error = %v, want ErrInvalidWalletFile", err)
	}
}

func TestStore_RefusesMismatchedRecord(t *testing.T) {
	s := newTestStore(t)
	a, _ := Generate(models.RoleMain, "")
	b, _ := Generate(models.RoleMain, "")

	if _, err := s.SaveMain(models.WalletRecord{PublicKey: a.PublicKey, SecretKey: b.SecretKey}); err == nil {
		t.Fatal("SaveMain() accepted a mismatched keypair")
	}
	mains, _ := s.ListMain()
	if len(mains) != 0 {
		t.Errorf("ListMain() = %d, want 0 after refused save", len(mains))
	}
}

func TestStore_SkipsCorruptFiles(t *testing.T) {
	s := newTestStore(t)
	good, _ := Generate(models.RoleMain, "")
	if _, err := s.SaveMain(good); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	mains, err := s.ListMain()
	if err != nil {
		t.Fatalf("ListMain() error = %v", err)
	}
	if len(mains) != 1 || mains[0].PublicKey != good.PublicKey {
		t.Errorf("ListMain() = %+v, want only the valid wallet", mains)
	}
}

func TestParseEphemeralName(t *testing.T) {
	tests := []struct {
		name    string
		wantTag string
		wantOK  bool
	}{
		{"temp-mintX-PubKey.json", "mintX", true},
		{"temp-a-b-PubKey.json", "a-b", true},
		{"PubKey.json", "", false},
		{"temp--PubKey.json", "", false},
		{"temp-mintX-.json", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, ok := parseEphemeralName(tt.name)
			if tag != tt.wantTag || ok != tt.wantOK {
				t.Errorf("parseEphemeralName(%q) = (%q, %v), want (%q, %v)", tt.name, tag, ok, tt.wantTag, tt.wantOK)
			}
		})
	}
}
