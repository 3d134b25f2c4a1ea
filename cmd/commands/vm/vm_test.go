package vm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"nathanbeddoewebdev/vmstate/internal/config"
	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/providers"
	"nathanbeddoewebdev/vmstate/internal/services/auth"

	"github.com/google/go-cmp/cmp"
)

// fakeBackend is an in-memory provider with one account.
type fakeBackend struct {
	mu       sync.Mutex
	password string
	groups   []domain.Group
	vms      []domain.VM
	nextID   int

	creates []domain.VMSpec
	deletes []string
	purged  []string
	powered []string
}

func newFakeBackend(groups ...string) *fakeBackend {
	f := &fakeBackend{password: "secret"}
	for i, name := range groups {
		f.groups = append(f.groups, domain.Group{ID: fmt.Sprint(i + 1), Name: name, AccountName: "alice"})
	}
	return f
}

func (f *fakeBackend) GetDisplayName() string { return "Fake" }

func (f *fakeBackend) Authenticate(_ context.Context, creds domain.Credentials) (domain.SessionToken, error) {
	if creds.Password != f.password {
		return "", &domain.ProviderError{StatusCode: 401, Method: "POST", URL: "https://auth.test/session", Message: "bad credentials"}
	}
	return "token", nil
}

func (f *fakeBackend) Connect(domain.SessionToken) (domain.Client, error) { return f, nil }

func (f *fakeBackend) ListAccounts(context.Context) ([]domain.Account, error) {
	return []domain.Account{{ID: "1", Name: "alice"}}, nil
}

func (f *fakeBackend) ListGroups(context.Context, domain.Account) ([]domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Group(nil), f.groups...), nil
}

func (f *fakeBackend) CreateGroup(_ context.Context, _ domain.Account, name string) (*domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := domain.Group{ID: fmt.Sprint(len(f.groups) + 1), Name: name}
	f.groups = append(f.groups, g)
	return &g, nil
}

func (f *fakeBackend) ListVMs(_ context.Context, group domain.Group, includeDeleted bool) ([]domain.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeBackend) CreateVM(_ context.Context, group domain.Group, spec domain.VMSpec) (*domain.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	power := domain.PowerOff
	if spec.PowerOn {
		power = domain.PowerOn
	}
	vm := domain.VM{
		ID:        fmt.Sprint(100 + f.nextID),
		Name:      spec.Name,
		GroupID:   group.ID,
		GroupName: group.Name,
		Power:     power,
		Existence: domain.ExistencePresent,
		Cores:     spec.Cores,
		MemoryGB:  spec.MemoryGB,
		Zone:      spec.Zone,
	}
	f.vms = append(f.vms, vm)
	f.creates = append(f.creates, spec)
	return &vm, nil
}

func (f *fakeBackend) DeleteVM(_ context.Context, vm domain.VM, purge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.vms {
		if f.vms[i].ID != vm.ID {
			continue
		}
		if purge {
			f.purged = append(f.purged, vm.Name)
			f.vms = append(f.vms[:i], f.vms[i+1:]...)
		} else {
			f.deletes = append(f.deletes, vm.Name)
			f.vms[i].Existence = domain.ExistenceDeleted
		}
		return nil
	}
	return &domain.ProviderError{StatusCode: 404, Message: "no such vm"}
}

func (f *fakeBackend) PowerOn(_ context.Context, vm domain.VM) (*domain.VM, error) {
	return f.setPower(vm, domain.PowerOn)
}

func (f *fakeBackend) PowerOff(_ context.Context, vm domain.VM) (*domain.VM, error) {
	return f.setPower(vm, domain.PowerOff)
}

func (f *fakeBackend) setPower(vm domain.VM, power domain.PowerState) (*domain.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.vms {
		if f.vms[i].ID == vm.ID {
			f.vms[i].Power = power
			f.powered = append(f.powered, vm.Name+"="+string(power))
			got := f.vms[i]
			return &got, nil
		}
	}
	return nil, &domain.ProviderError{StatusCode: 404, Message: "no such vm"}
}

func (f *fakeBackend) addVM(groupName string, vm domain.VM) {
	for _, g := range f.groups {
		if g.Name == groupName {
			vm.GroupID = g.ID
			vm.GroupName = g.Name
		}
	}
	if vm.Existence == "" {
		vm.Existence = domain.ExistencePresent
	}
	f.vms = append(f.vms, vm)
}

var testDefaults = providers.Defaults{
	Zone:            "york",
	HardwareProfile: "virtio2013",
	StorageGrade:    "sata",
}

// setupVMTest isolates config, keychain and terminal handling and registers
// fake under the name "fake".
func setupVMTest(t *testing.T, fake *fakeBackend) *auth.MockStore {
	t.Helper()

	config.SetPath(filepath.Join(t.TempDir(), "config.json"))
	t.Cleanup(config.ResetPath)
	t.Setenv(passwordEnv, "")
	t.Setenv(rootPasswordEnv, "")

	providers.Reset()
	t.Cleanup(func() { providers.Reset() })
	providers.Register("fake", func(providers.Options) (domain.Backend, error) {
		return fake, nil
	}, testDefaults)

	store := auth.NewMockStore()
	origStore, origTerm, origRead, origConfirm := newStore, isTerminal, readPassword, confirmPurge
	newStore = func() auth.Store { return store }
	isTerminal = func(int) bool { return false }
	readPassword = func(int) ([]byte, error) { return nil, errors.New("no terminal") }
	confirmPurge = func(string, string) (bool, error) {
		t.Fatal("unexpected purge confirmation")
		return false, nil
	}
	t.Cleanup(func() {
		newStore, isTerminal, readPassword, confirmPurge = origStore, origTerm, origRead, origConfirm
	})

	return store
}

// execVM runs the vm command with the fake provider and alice's identity.
func execVM(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	base := []string{"--provider", "fake", "--username", "alice"}
	cmd.SetArgs(append(args[:1:1], append(base, args[1:]...)...))
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, raw)
	}
	return v
}

func TestApply_CreatesAndWaitsForPowerOn(t *testing.T) {
	fake := newFakeBackend("prod")
	setupVMTest(t, fake)

	stdout, stderr, err := execVM(t, "apply",
		"--password", "secret",
		"--name", "web1", "--group", "prod",
		"--cores", "2", "--memory", "4",
		"--extra-disc", "archive:100",
		"--poll-interval", "1ms",
		"-o", "json")
	if err != nil {
		t.Fatalf("apply failed: %v\nstderr: %s", err, stderr)
	}

	got := decode[map[string]any](t, stdout)
	if got["changed"] != true {
		t.Errorf("changed = %v, want true", got["changed"])
	}
	if got["msg"] != "web1 was created and powered on" {
		t.Errorf("msg = %v", got["msg"])
	}

	want := []domain.VMSpec{{
		Name:            "web1",
		Zone:            "york",
		Cores:           2,
		MemoryGB:        4,
		HardwareProfile: "virtio2013",
		PowerOn:         true,
		Discs: []domain.DiscSpec{
			{StorageGrade: "sata", SizeGB: 25},
			{StorageGrade: "archive", SizeGB: 100},
		},
	}}
	if diff := cmp.Diff(want, fake.creates); diff != "" {
		t.Errorf("create requests mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_SecondRunIsUnchanged(t *testing.T) {
	fake := newFakeBackend("prod")
	fake.addVM("prod", domain.VM{ID: "7", Name: "web1", Power: domain.PowerOn})
	setupVMTest(t, fake)

	stdout, _, err := execVM(t, "apply", "--password", "secret",
		"--name", "web1", "--group", "prod", "--state", "running", "-o", "json")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	got := decode[map[string]any](t, stdout)
	if got["changed"] != false {
		t.Errorf("changed = %v, want false", got["changed"])
	}
	if len(fake.creates) != 0 || len(fake.powered) != 0 {
		t.Errorf("expected no mutations, got creates=%v powered=%v", fake.creates, fake.powered)
	}
}

func TestApply_StoppedPowersOff(t *testing.T) {
	fake := newFakeBackend("prod")
	fake.addVM("prod", domain.VM{ID: "7", Name: "web1", Power: domain.PowerOn})
	setupVMTest(t, fake)

	stdout, _, err := execVM(t, "apply", "--password", "secret",
		"--name", "web1", "--group", "prod", "--state", "stopped")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if diff := cmp.Diff([]string{"web1=off"}, fake.powered); diff != "" {
		t.Errorf("power calls mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stdout, "web1 was powered off") {
		t.Errorf("expected power-off message, got:\n%s", stdout)
	}
}

func TestApply_PurgeWithoutTerminalSkipsPrompt(t *testing.T) {
	fake := newFakeBackend("prod")
	fake.addVM("prod", domain.VM{ID: "7", Name: "web1", Power: domain.PowerOff})
	setupVMTest(t, fake)

	_, _, err := execVM(t, "apply", "--password", "secret",
		"--name", "web1", "--group", "prod", "--state", "absent", "--purge")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if diff := cmp.Diff([]string{"web1"}, fake.purged); diff != "" {
		t.Errorf("purged mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_PurgeDeclinedOnTerminal(t *testing.T) {
	fake := newFakeBackend("prod")
	fake.addVM("prod", domain.VM{ID: "7", Name: "web1", Power: domain.PowerOff})
	setupVMTest(t, fake)

	isTerminal = func(int) bool { return true }
	var asked string
	confirmPurge = func(name, group string) (bool, error) {
		asked = name + "@" + group
		return false, nil
	}

	_, stderr, err := execVM(t, "apply", "--password", "secret",
		"--name", "web1", "--group", "prod", "--state", "absent", "--purge")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if asked != "web1@prod" {
		t.Errorf("confirmation asked for %q, want web1@prod", asked)
	}
	if !strings.Contains(stderr, "Purge cancelled.") {
		t.Errorf("expected cancellation notice, got:\n%s", stderr)
	}
	if len(fake.purged) != 0 {
		t.Errorf("expected no purge, got %v", fake.purged)
	}
}

func TestApply_SoftDeleteTwiceIsUnchanged(t *testing.T) {
	fake := newFakeBackend("prod")
	fake.addVM("prod", domain.VM{ID: "7", Name: "web1", Power: domain.PowerOff})
	setupVMTest(t, fake)

	args := []string{"apply", "--password", "secret",
		"--name", "web1", "--group", "prod", "--state", "absent", "-o", "json"}

	first, _, err := execVM(t, args...)
	if err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	second, _, err := execVM(t, args...)
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}

	if got := decode[map[string]any](t, first); got["changed"] != true {
		t.Errorf("first run changed = %v, want true", got["changed"])
	}
	if got := decode[map[string]any](t, second); got["changed"] != false {
		t.Errorf("second run changed = %v, want false", got["changed"])
	}
	if diff := cmp.Diff([]string{"web1"}, fake.deletes); diff != "" {
		t.Errorf("deletes mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_AuthFailureReportsProviderDetails(t *testing.T) {
	fake := newFakeBackend("prod")
	setupVMTest(t, fake)

	stdout, _, err := execVM(t, "apply", "--password", "wrong",
		"--name", "web1", "--group", "prod", "-o", "json")
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}

	got := decode[failureRecord](t, stdout)
	want := failureRecord{
		Failed:     true,
		Kind:       "auth",
		Message:    got.Message,
		HTTPStatus: 401,
		HTTPMethod: "POST",
		URL:        "https://auth.test/session",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("failure record mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(got.Message, "bad credentials") {
		t.Errorf("message %q does not carry provider text", got.Message)
	}
}

func TestApply_MissingGroupWithoutGroupCreate(t *testing.T) {
	fake := newFakeBackend()
	setupVMTest(t, fake)

	_, stderr, err := execVM(t, "apply", "--password", "secret", "--name", "web1", "--group", "prod")
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	if !strings.Contains(stderr, "prod doesn't exist") {
		t.Errorf("expected missing-group error, got:\n%s", stderr)
	}
	if len(fake.creates) != 0 {
		t.Errorf("expected no create, got %v", fake.creates)
	}
}

func TestApply_ValidationHappensBeforeAuthentication(t *testing.T) {
	fake := newFakeBackend("prod")
	fake.password = "never-used"
	setupVMTest(t, fake)

	stdout, _, err := execVM(t, "apply", "--password", "secret",
		"--name", "web1", "--state", "paused", "-o", "json")
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	if got := decode[failureRecord](t, stdout); got.Kind != "validation" {
		t.Errorf("kind = %q, want validation", got.Kind)
	}
}

func TestApply_PasswordFromKeychain(t *testing.T) {
	fake := newFakeBackend("prod")
	store := setupVMTest(t, fake)
	store.SetPassword("fake", "alice", "secret")

	_, stderr, err := execVM(t, "apply", "--name", "web1", "--group", "prod", "--power-on=false")
	if err != nil {
		t.Fatalf("apply failed: %v\nstderr: %s", err, stderr)
	}
	if len(fake.creates) != 1 || fake.creates[0].PowerOn {
		t.Errorf("expected one powered-off create, got %+v", fake.creates)
	}
}

func TestApply_NoPasswordWithoutTerminal(t *testing.T) {
	setupVMTest(t, newFakeBackend("prod"))

	_, stderr, err := execVM(t, "apply", "--name", "web1", "--group", "prod")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr, "vmstate auth login fake --username alice") {
		t.Errorf("expected login hint, got:\n%s", stderr)
	}
}

func TestPlan_DoesNotMutate(t *testing.T) {
	fake := newFakeBackend("prod")
	fake.addVM("prod", domain.VM{ID: "7", Name: "web1", Power: domain.PowerOff})
	setupVMTest(t, fake)

	stdout, _, err := execVM(t, "plan", "--password", "secret",
		"--name", "web1", "--group", "prod", "--state", "running", "-o", "json")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	got := decode[map[string]any](t, stdout)
	if got["action"] != "power-on" || got["msg"] != "web1 would be powered on" {
		t.Errorf("unexpected plan output: %v", got)
	}
	if got["dry_run"] != true {
		t.Errorf("dry_run = %v, want true", got["dry_run"])
	}
	if len(fake.powered) != 0 {
		t.Errorf("plan mutated provider: %v", fake.powered)
	}
}

func TestList_TableAcrossGroups(t *testing.T) {
	fake := newFakeBackend("prod", "staging")
	fake.addVM("prod", domain.VM{ID: "1", Name: "web1", Power: domain.PowerOn, PrimaryIPv4: "192.0.2.1"})
	fake.addVM("staging", domain.VM{ID: "2", Name: "web2", Power: domain.PowerOff})
	fake.addVM("staging", domain.VM{ID: "3", Name: "old", Power: domain.PowerOff, Existence: domain.ExistenceDeleted})
	setupVMTest(t, fake)

	stdout, _, err := execVM(t, "list", "--password", "secret")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	for _, want := range []string{"GROUP", "NAME", "web1", "web2", "192.0.2.1", "prod", "staging"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "old") {
		t.Errorf("deleted VM listed without --include-deleted:\n%s", stdout)
	}
}

func TestList_GroupFilterJSON(t *testing.T) {
	fake := newFakeBackend("prod", "staging")
	fake.addVM("prod", domain.VM{ID: "1", Name: "web1", Power: domain.PowerOn})
	fake.addVM("staging", domain.VM{ID: "2", Name: "web2", Power: domain.PowerOff})
	fake.addVM("staging", domain.VM{ID: "3", Name: "old", Existence: domain.ExistenceDeleted})
	setupVMTest(t, fake)

	stdout, _, err := execVM(t, "list", "--password", "secret",
		"--group", "staging", "--include-deleted", "-o", "json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	vms := decode[[]domain.VM](t, stdout)
	var names []string
	for _, vm := range vms {
		names = append(names, vm.Name)
	}
	if diff := cmp.Diff([]string{"old", "web2"}, names); diff != "" {
		t.Errorf("listed VMs mismatch (-want +got):\n%s", diff)
	}
}

func TestList_UnknownGroup(t *testing.T) {
	setupVMTest(t, newFakeBackend("prod"))

	_, stderr, err := execVM(t, "list", "--password", "secret", "--group", "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr, "nope doesn't exist") {
		t.Errorf("expected unknown group error, got:\n%s", stderr)
	}
}

func TestParseDisc(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.DiscSpec
		wantErr bool
	}{
		{in: "archive:100", want: domain.DiscSpec{StorageGrade: "archive", SizeGB: 100}},
		{in: " sata:25 ", want: domain.DiscSpec{StorageGrade: "sata", SizeGB: 25}},
		{in: "archive", wantErr: true},
		{in: ":10", wantErr: true},
		{in: "sata:big", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDisc(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDisc(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseDisc(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestResolveProvider_UsesConfigDefault(t *testing.T) {
	fake := newFakeBackend("prod")
	setupVMTest(t, fake)

	cfg := &config.Config{DefaultProvider: "fake", Username: "alice"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("save config: %v", err)
	}

	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs([]string{"plan", "--password", "secret", "--name", "web1", "--group", "prod"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("plan failed: %v\nstderr: %s", err, errBuf.String())
	}
	if !strings.Contains(outBuf.String(), "web1 would be created") {
		t.Errorf("unexpected output:\n%s", outBuf.String())
	}
}
