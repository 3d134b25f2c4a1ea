package vm

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/vmstate/internal/config"
	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/providers"
	"nathanbeddoewebdev/vmstate/internal/services/auth"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const passwordEnv = "VMSTATE_PASSWORD"

// Seams replaced in tests.
var (
	newStore     = auth.DefaultStore
	isTerminal   = func(fd int) bool { return term.IsTerminal(fd) }
	readPassword = term.ReadPassword
)

// session is everything a command needs to talk to one provider.
type session struct {
	providerName string
	backend      domain.Backend
	creds        domain.Credentials
	account      string
	defaults     providers.Defaults
	cfg          *config.Config
}

// openSession resolves provider, identity and password from flags,
// config, the environment and the keychain, in that order. The password
// prompt is used only when stdin is a terminal.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	providerName, _ := cmd.Flags().GetString("provider")
	defaults, err := providers.DefaultsFor(providerName)
	if err != nil {
		return nil, err
	}

	username := flagOr(cmd, "username", cfg.Username)
	if username == "" {
		return nil, fmt.Errorf("no username: use --username or 'vmstate config set username <name>'")
	}
	account := flagOr(cmd, "account", username)

	password, err := resolvePassword(cmd, providerName, username)
	if err != nil {
		return nil, err
	}
	otp, _ := cmd.Flags().GetString("otp")

	backend, err := providers.Get(providerName, providers.Options{
		Endpoint:     flagOr(cmd, "endpoint", cfg.Endpoint),
		AuthEndpoint: flagOr(cmd, "auth-endpoint", cfg.AuthEndpoint),
		Account:      account,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		providerName: providerName,
		backend:      backend,
		creds:        domain.Credentials{Username: username, Password: password, OTP: strings.TrimSpace(otp)},
		account:      account,
		defaults:     defaults,
		cfg:          cfg,
	}, nil
}

func resolvePassword(cmd *cobra.Command, providerName, username string) (string, error) {
	if password, _ := cmd.Flags().GetString("password"); password != "" {
		return password, nil
	}
	if password := os.Getenv(passwordEnv); password != "" {
		return password, nil
	}

	password, err := newStore().GetPassword(providerName, username)
	if err == nil {
		return password, nil
	}
	if !errors.Is(err, auth.ErrPasswordNotFound) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: keychain unavailable: %v\n", err)
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", fmt.Errorf("no password for %s on %s: use --password, $%s or 'vmstate auth login %s --username %s'",
			username, providerName, passwordEnv, providerName, username)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s: ", username)
	raw, err := readPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimSpace(string(raw))
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

// flagOr returns the named string flag when it was set, otherwise fallback.
func flagOr(cmd *cobra.Command, name, fallback string) string {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return strings.TrimSpace(f.Value.String())
	}
	return fallback
}
