package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "default-provider").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set validates and applies a value for this key to the given Config
	// (in memory only; the caller is responsible for calling Save). An
	// empty value clears the key.
	Set func(cfg *Config, value string) error
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config and append a KeySpec here.
var Keys = []KeySpec{
	stringKey("default-provider", "Provider used when --provider is not specified",
		func(cfg *Config) *string { return &cfg.DefaultProvider }),
	stringKey("username", "Login username used when --username is not specified",
		func(cfg *Config) *string { return &cfg.Username }),
	stringKey("endpoint", "Provider API base URL override",
		func(cfg *Config) *string { return &cfg.Endpoint }),
	stringKey("auth-endpoint", "Provider authentication URL override",
		func(cfg *Config) *string { return &cfg.AuthEndpoint }),
	stringKey("default-zone", "Zone used when --zone is not specified",
		func(cfg *Config) *string { return &cfg.DefaultZone }),
	{
		Name:        "poll-attempts",
		Description: "Maximum status checks while waiting for a new VM to power on",
		Get: func(cfg *Config) string {
			if cfg.PollAttempts == 0 {
				return ""
			}
			return strconv.Itoa(cfg.PollAttempts)
		},
		Set: func(cfg *Config, v string) error {
			if v == "" {
				cfg.PollAttempts = 0
				return nil
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("poll-attempts must be a positive integer, got %q", v)
			}
			cfg.PollAttempts = n
			return nil
		},
	},
	{
		Name:        "poll-interval",
		Description: "Delay between status checks, as a duration such as 5s",
		Get:         func(cfg *Config) string { return cfg.PollInterval },
		Set: func(cfg *Config, v string) error {
			if v == "" {
				cfg.PollInterval = ""
				return nil
			}
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return fmt.Errorf("poll-interval must be a positive duration, got %q", v)
			}
			cfg.PollInterval = d.String()
			return nil
		},
	},
}

func stringKey(name, description string, field func(cfg *Config) *string) KeySpec {
	return KeySpec{
		Name:        name,
		Description: description,
		Get:         func(cfg *Config) string { return *field(cfg) },
		Set: func(cfg *Config, v string) error {
			*field(cfg) = v
			return nil
		},
	}
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
