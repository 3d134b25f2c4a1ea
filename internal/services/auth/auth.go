// Package auth keeps provider passwords and API tokens in the OS
// keychain so repeated runs do not have to prompt for them.
package auth

import (
	"errors"
	"strings"

	"nathanbeddoewebdev/vmstate/internal/util"
)

const ServiceName = "vmstate"

var ErrPasswordNotFound = errors.New("password not found")

// Store persists one secret per provider and username.
type Store interface {
	SetPassword(provider, username, password string) error
	GetPassword(provider, username string) (string, error)
	DeletePassword(provider, username string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// Key builds the keychain entry name for a provider and username.
// Provider names are normalized; usernames are kept as typed apart from
// surrounding whitespace.
func Key(provider, username string) string {
	return util.NormalizeKey(provider) + ":" + strings.TrimSpace(username)
}
