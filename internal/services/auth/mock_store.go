package auth

// MockStore is an in-memory auth store for testing.
type MockStore struct {
	passwords map[string]string
}

func NewMockStore() *MockStore {
	return &MockStore{passwords: make(map[string]string)}
}

func (m *MockStore) SetPassword(provider, username, password string) error {
	m.passwords[Key(provider, username)] = password
	return nil
}

func (m *MockStore) GetPassword(provider, username string) (string, error) {
	password, ok := m.passwords[Key(provider, username)]
	if !ok {
		return "", ErrPasswordNotFound
	}
	return password, nil
}

func (m *MockStore) DeletePassword(provider, username string) error {
	key := Key(provider, username)
	if _, ok := m.passwords[key]; !ok {
		return ErrPasswordNotFound
	}
	delete(m.passwords, key)
	return nil
}
