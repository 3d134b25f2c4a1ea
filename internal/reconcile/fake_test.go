package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"nathanbeddoewebdev/vmstate/internal/domain"
)

// fakeClient is an in-memory domain.Client that records every call.
type fakeClient struct {
	accounts []domain.Account
	groups   []domain.Group
	vms      []domain.VM

	// createPower is the power state a created VM reports; pollPower, when
	// non-empty, is reported by successive ListVMs calls after a create.
	createPower domain.PowerState
	pollPower   []domain.PowerState
	createName  string

	listAccountsErr error
	listGroupsErr   error
	listVMsErr      error
	createErr       error
	deleteErr       error
	powerErr        error

	calls   []string
	created []domain.VMSpec
	deleted []deleteCall
	nextID  int
}

type deleteCall struct {
	Name  string
	Purge bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		accounts: []domain.Account{{ID: "1", Name: "b"}},
		groups:   []domain.Group{{ID: "10", Name: "default", AccountID: "1", AccountName: "b"}},
		nextID:   100,
	}
}

func (f *fakeClient) withVM(name string, power domain.PowerState, existence domain.Existence) *fakeClient {
	f.vms = append(f.vms, domain.VM{
		ID:          strconv.Itoa(len(f.vms) + 1),
		Name:        name,
		GroupID:     "10",
		GroupName:   "default",
		AccountName: "b",
		Power:       power,
		Existence:   existence,
	})
	return f
}

func (f *fakeClient) ListAccounts(_ context.Context) ([]domain.Account, error) {
	f.calls = append(f.calls, "ListAccounts")
	return f.accounts, f.listAccountsErr
}

func (f *fakeClient) ListGroups(_ context.Context, account domain.Account) ([]domain.Group, error) {
	f.calls = append(f.calls, "ListGroups")
	if f.listGroupsErr != nil {
		return nil, f.listGroupsErr
	}
	var out []domain.Group
	for _, g := range f.groups {
		if g.AccountID == account.ID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeClient) CreateGroup(_ context.Context, account domain.Account, name string) (*domain.Group, error) {
	f.calls = append(f.calls, "CreateGroup")
	f.nextID++
	g := domain.Group{ID: strconv.Itoa(f.nextID), Name: name, AccountID: account.ID, AccountName: account.Name}
	f.groups = append(f.groups, g)
	return &g, nil
}

func (f *fakeClient) ListVMs(_ context.Context, group domain.Group, includeDeleted bool) ([]domain.VM, error) {
	f.calls = append(f.calls, fmt.Sprintf("ListVMs(deleted=%t)", includeDeleted))
	if f.listVMsErr != nil {
		return nil, f.listVMsErr
	}
	if len(f.created) > 0 && len(f.pollPower) > 0 {
		power := f.pollPower[0]
		f.pollPower = f.pollPower[1:]
		for i := range f.vms {
			if f.vms[i].Name == f.created[len(f.created)-1].Name {
				f.vms[i].Power = power
			}
		}
	}
	var out []domain.VM
	for _, vm := range f.vms {
		if vm.GroupID != group.ID {
			continue
		}
		if vm.Deleted() && !includeDeleted {
			continue
		}
		out = append(out, vm)
	}
	return out, nil
}

func (f *fakeClient) CreateVM(_ context.Context, group domain.Group, spec domain.VMSpec) (*domain.VM, error) {
	f.calls = append(f.calls, "CreateVM")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, spec)

	power := f.createPower
	if power == "" {
		power = domain.PowerOff
		if spec.PowerOn {
			power = domain.PowerOn
		}
	}
	name := spec.Name
	if f.createName != "" {
		name = f.createName
	}
	f.nextID++
	vm := domain.VM{
		ID:          strconv.Itoa(f.nextID),
		Name:        name,
		GroupID:     group.ID,
		GroupName:   group.Name,
		AccountName: group.AccountName,
		Power:       power,
		Existence:   domain.ExistencePresent,
		Cores:       spec.Cores,
		MemoryGB:    spec.MemoryGB,
		Zone:        spec.Zone,
	}
	f.vms = append(f.vms, vm)
	return &vm, nil
}

func (f *fakeClient) DeleteVM(_ context.Context, vm domain.VM, purge bool) error {
	f.calls = append(f.calls, fmt.Sprintf("DeleteVM(purge=%t)", purge))
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, deleteCall{Name: vm.Name, Purge: purge})

	kept := f.vms[:0]
	for _, v := range f.vms {
		if v.ID != vm.ID {
			kept = append(kept, v)
			continue
		}
		if !purge {
			v.Existence = domain.ExistenceDeleted
			v.Power = domain.PowerOff
			kept = append(kept, v)
		}
	}
	f.vms = kept
	return nil
}

func (f *fakeClient) PowerOn(_ context.Context, vm domain.VM) (*domain.VM, error) {
	f.calls = append(f.calls, "PowerOn")
	return f.setPower(vm, domain.PowerOn)
}

func (f *fakeClient) PowerOff(_ context.Context, vm domain.VM) (*domain.VM, error) {
	f.calls = append(f.calls, "PowerOff")
	return f.setPower(vm, domain.PowerOff)
}

func (f *fakeClient) setPower(vm domain.VM, power domain.PowerState) (*domain.VM, error) {
	if f.powerErr != nil {
		return nil, f.powerErr
	}
	for i := range f.vms {
		if f.vms[i].ID == vm.ID {
			f.vms[i].Power = power
			got := f.vms[i]
			return &got, nil
		}
	}
	return nil, &domain.ProviderError{StatusCode: 404, Method: "PUT", URL: "/vms/" + vm.ID, Message: "not found"}
}

// mutations returns the recorded calls that change provider state.
func (f *fakeClient) mutations() []string {
	var out []string
	for _, c := range f.calls {
		switch {
		case c == "CreateVM", c == "CreateGroup", c == "PowerOn", c == "PowerOff",
			len(c) > 8 && c[:8] == "DeleteVM":
			out = append(out, c)
		}
	}
	return out
}

// fakeBackend wraps a fakeClient with a password check.
type fakeBackend struct {
	client   *fakeClient
	password string
	sessions []domain.SessionToken
}

func (b *fakeBackend) GetDisplayName() string { return "Fake" }

func (b *fakeBackend) Authenticate(_ context.Context, creds domain.Credentials) (domain.SessionToken, error) {
	if creds.Password != b.password {
		return "", fmt.Errorf("bad password: %w", domain.ErrUnauthorized)
	}
	return domain.SessionToken("session-" + creds.Username), nil
}

func (b *fakeBackend) Connect(session domain.SessionToken) (domain.Client, error) {
	b.sessions = append(b.sessions, session)
	return b.client, nil
}
