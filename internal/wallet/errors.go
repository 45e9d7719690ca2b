package wallet

import (
	"errors"

	"github.com/Fantasim/solfan/internal/config"
)

var (
	ErrInvalidMnemonic = config.ErrInvalidMnemonic
	ErrDerivation      = errors.New("key derivation failed")
	ErrKeyMismatch     = errors.New("public key does not match secret key")
)
