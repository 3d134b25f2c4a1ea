package domain

import "context"

// Credentials identify the caller for a single invocation. They are
// handed to an Authenticator and never stored by the engine.
type Credentials struct {
	Username string
	Password string
	// OTP is an optional one-time second factor (e.g. a Yubikey code).
	OTP string
}

// SessionToken is the opaque handle returned by a successful
// authentication. It lives for one invocation only.
type SessionToken string

// Authenticator exchanges credentials for a session token. Bad
// credentials must yield an error wrapping ErrUnauthorized.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (SessionToken, error)
}

// Client is the capability set the reconciliation engine needs from a
// provider. Implementations return *ProviderError for remote failures.
type Client interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	ListGroups(ctx context.Context, account Account) ([]Group, error)
	CreateGroup(ctx context.Context, account Account, name string) (*Group, error)

	// ListVMs returns the VMs in group. When includeDeleted is true,
	// soft-deleted machines are returned with Existence set to
	// ExistenceDeleted.
	ListVMs(ctx context.Context, group Group, includeDeleted bool) ([]VM, error)

	// CreateVM submits sizing, storage, image and initial power intent in
	// one request and returns the new machine as observed by the provider.
	// When the machine exists but a follow-up step failed, both the VM and
	// the error are returned.
	CreateVM(ctx context.Context, group Group, spec VMSpec) (*VM, error)

	// DeleteVM removes vm. purge=true destroys it together with its
	// backing storage; purge=false is a reversible soft delete.
	DeleteVM(ctx context.Context, vm VM, purge bool) error

	PowerOn(ctx context.Context, vm VM) (*VM, error)
	PowerOff(ctx context.Context, vm VM) (*VM, error)
}

// SpecChecker is implemented by clients that honour only part of a
// VMSpec. CheckSpec returns an error wrapping ErrUnsupportedSpec for a
// spec whose fields the provider would otherwise ignore.
type SpecChecker interface {
	CheckSpec(ctx context.Context, spec VMSpec) error
}

// Backend bundles an Authenticator with a way to build a Client once a
// session is established.
type Backend interface {
	Authenticator
	Connect(session SessionToken) (Client, error)
	GetDisplayName() string
}
