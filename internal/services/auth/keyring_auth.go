package auth

import (
	"errors"

	"github.com/zalando/go-keyring"
)

type KeyringStore struct {
	serviceName string
}

func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

func (k *KeyringStore) SetPassword(provider, username, password string) error {
	return keyring.Set(k.serviceName, Key(provider, username), password)
}

func (k *KeyringStore) GetPassword(provider, username string) (string, error) {
	password, err := keyring.Get(k.serviceName, Key(provider, username))
	if err == nil {
		return password, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrPasswordNotFound
	}
	return "", err
}

func (k *KeyringStore) DeletePassword(provider, username string) error {
	err := keyring.Delete(k.serviceName, Key(provider, username))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrPasswordNotFound
	}
	return err
}
