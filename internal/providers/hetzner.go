package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/retry"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

const (
	// hetznerGroupLabel carries the group name. A group is a labelled
	// placement group, so it outlives the servers in it; servers join a
	// group through the same label.
	hetznerGroupLabel = "vmstate/group"
	// hetznerDeletedLabel marks a soft-deleted server. Soft delete powers
	// the server off and sets this label; purge removes the server.
	hetznerDeletedLabel = "vmstate/deleted"

	hetznerDefaultAccount = "default"
	hetznerStorageGrade   = "local"
)

// Compile-time checks.
var (
	_ domain.Backend = (*HetznerBackend)(nil)
	_ domain.Client      = (*HetznerClient)(nil)
	_ domain.SpecChecker = (*HetznerClient)(nil)
)

// HetznerBackend maps the engine onto a Hetzner Cloud project. The API
// token is passed as the password; the project is the single account.
type HetznerBackend struct {
	opts    []hcloud.ClientOption
	account string
	retry   retry.Config
}

// NewHetznerBackend creates a HetznerBackend. Default options (application
// name) are applied first; extra options can override them.
func NewHetznerBackend(opts Options, extra ...hcloud.ClientOption) *HetznerBackend {
	clientOpts := []hcloud.ClientOption{
		hcloud.WithApplication("vmstate", "0.1.0"),
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, hcloud.WithEndpoint(opts.Endpoint))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, hcloud.WithHTTPClient(opts.HTTPClient))
	}
	clientOpts = append(clientOpts, extra...)

	account := opts.Account
	if account == "" {
		account = hetznerDefaultAccount
	}
	retryCfg := opts.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}
	return &HetznerBackend{opts: clientOpts, account: account, retry: retryCfg}
}

// RegisterHetzner registers the Hetzner backend factory with the global registry.
func RegisterHetzner() {
	Register("hetzner", func(opts Options) (domain.Backend, error) {
		return NewHetznerBackend(opts), nil
	}, Defaults{
		HardwareProfile: "cx22",
		StorageGrade:    hetznerStorageGrade,
		Distribution:    "ubuntu-24.04",
	})
}

func (h *HetznerBackend) GetDisplayName() string {
	return "Hetzner"
}

func (h *HetznerBackend) newClient(token string) *hcloud.Client {
	opts := append([]hcloud.ClientOption{}, h.opts...)
	opts = append(opts, hcloud.WithToken(token))
	return hcloud.NewClient(opts...)
}

// Authenticate checks the API token with a cheap read, retrying
// transient failures. The token itself becomes the session.
func (h *HetznerBackend) Authenticate(ctx context.Context, creds domain.Credentials) (domain.SessionToken, error) {
	if creds.Password == "" {
		return "", fmt.Errorf("hetzner: API token is required: %w", domain.ErrUnauthorized)
	}

	client := h.newClient(creds.Password)
	err := retry.Do(ctx, h.retry, retry.IsRetryable, func() error {
		if _, resp, err := client.Location.List(ctx, hcloud.LocationListOpts{}); err != nil {
			return hetznerError(resp, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return domain.SessionToken(creds.Password), nil
}

// Connect returns a client bound to session.
func (h *HetznerBackend) Connect(session domain.SessionToken) (domain.Client, error) {
	if session == "" {
		return nil, fmt.Errorf("hetzner: empty session token")
	}
	return &HetznerClient{
		client:  h.newClient(string(session)),
		account: domain.Account{ID: h.account, Name: h.account},
	}, nil
}

// HetznerClient implements domain.Client against one project.
type HetznerClient struct {
	client  *hcloud.Client
	account domain.Account
}

func (c *HetznerClient) ListAccounts(_ context.Context) ([]domain.Account, error) {
	return []domain.Account{c.account}, nil
}

// ListGroups returns the placement groups carrying the group label.
func (c *HetznerClient) ListGroups(ctx context.Context, account domain.Account) ([]domain.Group, error) {
	pgs, err := c.client.PlacementGroup.AllWithOpts(ctx, hcloud.PlacementGroupListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: hetznerGroupLabel},
	})
	if err != nil {
		return nil, hetznerError(nil, err)
	}

	groups := make([]domain.Group, 0, len(pgs))
	for _, pg := range pgs {
		name := pg.Labels[hetznerGroupLabel]
		if name == "" {
			name = pg.Name
		}
		groups = append(groups, c.group(pg.ID, name))
	}
	return groups, nil
}

// CreateGroup creates the labelled placement group that names the group.
// Servers are matched to it by label, not by placement membership.
func (c *HetznerClient) CreateGroup(ctx context.Context, _ domain.Account, name string) (*domain.Group, error) {
	result, resp, err := c.client.PlacementGroup.Create(ctx, hcloud.PlacementGroupCreateOpts{
		Name:   name,
		Type:   hcloud.PlacementGroupTypeSpread,
		Labels: map[string]string{hetznerGroupLabel: name},
	})
	if err != nil {
		return nil, hetznerError(resp, err)
	}
	if result.Action != nil {
		if err := c.client.Action.WaitFor(ctx, result.Action); err != nil {
			return nil, hetznerError(nil, err)
		}
	}

	g := c.group(result.PlacementGroup.ID, name)
	return &g, nil
}

func (c *HetznerClient) group(id int64, name string) domain.Group {
	return domain.Group{
		ID:          strconv.FormatInt(id, 10),
		Name:        name,
		AccountID:   c.account.ID,
		AccountName: c.account.Name,
	}
}

// CheckSpec rejects what a Hetzner server cannot carry. Sizing is fixed
// by the server type: cores, memory and the primary disc must fit it.
func (c *HetznerClient) CheckSpec(ctx context.Context, spec domain.VMSpec) error {
	var unsupported []string
	if len(spec.Discs) > 1 {
		unsupported = append(unsupported, fmt.Sprintf("%d extra discs", len(spec.Discs)-1))
	}
	if len(spec.Discs) > 0 && spec.Discs[0].StorageGrade != hetznerStorageGrade {
		unsupported = append(unsupported, fmt.Sprintf("storage grade %q", spec.Discs[0].StorageGrade))
	}
	if spec.RootPassword != "" {
		unsupported = append(unsupported, "a root password")
	}
	if spec.CDROMURL != "" {
		unsupported = append(unsupported, "a CD-ROM URL")
	}
	if len(unsupported) > 0 {
		return fmt.Errorf("hetzner: %s not supported: %w", strings.Join(unsupported, ", "), domain.ErrUnsupportedSpec)
	}

	st, resp, err := c.client.ServerType.GetByName(ctx, spec.HardwareProfile)
	if err != nil {
		return hetznerError(resp, err)
	}
	if st == nil {
		return fmt.Errorf("hetzner: unknown server type %q: %w", spec.HardwareProfile, domain.ErrUnsupportedSpec)
	}

	var over []string
	if spec.Cores > st.Cores {
		over = append(over, fmt.Sprintf("%d cores", spec.Cores))
	}
	if float32(spec.MemoryGB) > st.Memory {
		over = append(over, fmt.Sprintf("%d GB memory", spec.MemoryGB))
	}
	if len(spec.Discs) > 0 && spec.Discs[0].SizeGB > st.Disk {
		over = append(over, fmt.Sprintf("a %d GB disc", spec.Discs[0].SizeGB))
	}
	if len(over) > 0 {
		return fmt.Errorf("hetzner: server type %s (%d cores, %g GB memory, %d GB disc) cannot provide %s; choose a larger --hardware-profile: %w",
			st.Name, st.Cores, st.Memory, st.Disk, strings.Join(over, ", "), domain.ErrUnsupportedSpec)
	}
	return nil
}

func (c *HetznerClient) ListVMs(ctx context.Context, group domain.Group, includeDeleted bool) ([]domain.VM, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: hetznerGroupLabel + "=" + group.Name},
	})
	if err != nil {
		return nil, hetznerError(nil, err)
	}

	vms := make([]domain.VM, 0, len(servers))
	for _, s := range servers {
		vm := toDomainVMFromServer(s, group)
		if vm.Deleted() && !includeDeleted {
			continue
		}
		vms = append(vms, vm)
	}
	return vms, nil
}

// CreateVM creates a server labelled with its group. Hetzner sizes the
// server and root disc from the server type; CheckSpec guards the fields
// that are not sent.
func (c *HetznerClient) CreateVM(ctx context.Context, group domain.Group, spec domain.VMSpec) (*domain.VM, error) {
	opts := hcloud.ServerCreateOpts{
		Name:             spec.Name,
		ServerType:       &hcloud.ServerType{Name: spec.HardwareProfile},
		Image:            &hcloud.Image{Name: spec.Distribution},
		StartAfterCreate: hcloud.Ptr(spec.PowerOn),
		Labels:           map[string]string{hetznerGroupLabel: group.Name},
	}
	if spec.Zone != "" {
		opts.Location = &hcloud.Location{Name: spec.Zone}
	}

	result, resp, err := c.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, hetznerError(resp, err)
	}

	vm := toDomainVMFromServer(result.Server, group)
	if spec.ReverseDNS == "" || vm.PrimaryIPv4 == "" {
		return &vm, nil
	}

	ip := result.Server.PublicNet.IPv4.IP
	action, resp, err := c.client.RDNS.ChangeDNSPtr(ctx, result.Server, ip, hcloud.Ptr(spec.ReverseDNS))
	if err != nil {
		return &vm, hetznerError(resp, err)
	}
	if err := c.client.Action.WaitFor(ctx, action); err != nil {
		return &vm, hetznerError(nil, err)
	}
	return &vm, nil
}

// DeleteVM purges by deleting the server. A soft delete labels the
// server and powers it off so it can be recovered.
func (c *HetznerClient) DeleteVM(ctx context.Context, vm domain.VM, purge bool) error {
	server, err := c.server(ctx, vm)
	if err != nil {
		return err
	}

	if purge {
		result, resp, err := c.client.Server.DeleteWithResult(ctx, server)
		if err != nil {
			return hetznerError(resp, err)
		}
		if result != nil && result.Action != nil {
			if err := c.client.Action.WaitFor(ctx, result.Action); err != nil {
				return hetznerError(nil, err)
			}
		}
		return nil
	}

	labels := make(map[string]string, len(server.Labels)+1)
	for k, v := range server.Labels {
		labels[k] = v
	}
	labels[hetznerDeletedLabel] = "true"
	if _, resp, err := c.client.Server.Update(ctx, server, hcloud.ServerUpdateOpts{Labels: labels}); err != nil {
		return hetznerError(resp, err)
	}

	if server.Status == hcloud.ServerStatusOff {
		return nil
	}
	action, resp, err := c.client.Server.Poweroff(ctx, server)
	if err != nil {
		return hetznerError(resp, err)
	}
	if err := c.client.Action.WaitFor(ctx, action); err != nil {
		return hetznerError(nil, err)
	}
	return nil
}

func (c *HetznerClient) PowerOn(ctx context.Context, vm domain.VM) (*domain.VM, error) {
	return c.setPower(ctx, vm, c.client.Server.Poweron)
}

func (c *HetznerClient) PowerOff(ctx context.Context, vm domain.VM) (*domain.VM, error) {
	return c.setPower(ctx, vm, c.client.Server.Poweroff)
}

type powerFunc func(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)

// setPower runs the power action to completion and reads the server back.
func (c *HetznerClient) setPower(ctx context.Context, vm domain.VM, fn powerFunc) (*domain.VM, error) {
	id, err := serverID(vm)
	if err != nil {
		return nil, err
	}

	action, resp, err := fn(ctx, &hcloud.Server{ID: id})
	if err != nil {
		return nil, hetznerError(resp, err)
	}
	if err := c.client.Action.WaitFor(ctx, action); err != nil {
		return nil, hetznerError(nil, err)
	}

	server, err := c.server(ctx, vm)
	if err != nil {
		return nil, err
	}
	got := toDomainVMFromServer(server, domain.Group{ID: vm.GroupID, Name: vm.GroupName, AccountName: vm.AccountName})
	return &got, nil
}

func (c *HetznerClient) server(ctx context.Context, vm domain.VM) (*hcloud.Server, error) {
	id, err := serverID(vm)
	if err != nil {
		return nil, err
	}

	server, resp, err := c.client.Server.GetByID(ctx, id)
	if err != nil {
		return nil, hetznerError(resp, err)
	}
	if server == nil {
		return nil, &domain.ProviderError{
			StatusCode: http.StatusNotFound,
			Method:     http.MethodGet,
			URL:        requestURL(resp),
			Message:    fmt.Sprintf("server %s not found", vm.ID),
		}
	}
	return server, nil
}

func serverID(vm domain.VM) (int64, error) {
	id, err := strconv.ParseInt(vm.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid server ID %q: %w", vm.ID, err)
	}
	return id, nil
}

// hetznerError converts an SDK error into a ProviderError. The status,
// method and URL come from resp when the SDK returned one; otherwise the
// status is inferred from the API error code.
func hetznerError(resp *hcloud.Response, err error) error {
	pe := &domain.ProviderError{Message: err.Error(), Err: err}

	if resp != nil && resp.Response != nil {
		pe.StatusCode = resp.StatusCode
		if resp.Request != nil {
			pe.Method = resp.Request.Method
			pe.URL = resp.Request.URL.String()
		}
	}

	var apiErr hcloud.Error
	if errors.As(err, &apiErr) {
		pe.Message = apiErr.Message
		if pe.StatusCode == 0 {
			pe.StatusCode = statusForCode(apiErr.Code)
		}
	}

	return pe
}

func statusForCode(code hcloud.ErrorCode) int {
	switch code {
	case hcloud.ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case hcloud.ErrorCodeForbidden:
		return http.StatusForbidden
	case hcloud.ErrorCodeNotFound:
		return http.StatusNotFound
	case hcloud.ErrorCodeConflict, hcloud.ErrorCodeUniquenessError:
		return http.StatusConflict
	case hcloud.ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	}
	return 0
}

func requestURL(resp *hcloud.Response) string {
	if resp == nil || resp.Response == nil || resp.Request == nil {
		return ""
	}
	return resp.Request.URL.String()
}

// toDomainVMFromServer converts an hcloud.Server to a domain.VM.
func toDomainVMFromServer(s *hcloud.Server, group domain.Group) domain.VM {
	vm := domain.VM{
		ID:          strconv.FormatInt(s.ID, 10),
		Name:        s.Name,
		AccountName: group.AccountName,
		GroupID:     group.ID,
		GroupName:   group.Name,
		Power:       powerFromStatus(s.Status),
		Existence:   domain.ExistencePresent,
	}

	if s.Labels[hetznerDeletedLabel] == "true" {
		vm.Existence = domain.ExistenceDeleted
	}

	if !s.PublicNet.IPv4.IsUnspecified() {
		vm.PrimaryIPv4 = s.PublicNet.IPv4.IP.String()
	}

	if s.ServerType != nil {
		vm.HardwareProfile = s.ServerType.Name
		vm.Cores = s.ServerType.Cores
		vm.MemoryGB = int(s.ServerType.Memory)
	}

	if s.Location != nil {
		vm.Zone = s.Location.Name
	}

	return vm
}

func powerFromStatus(status hcloud.ServerStatus) domain.PowerState {
	switch status {
	case hcloud.ServerStatusRunning:
		return domain.PowerOn
	case hcloud.ServerStatusOff:
		return domain.PowerOff
	}
	return domain.PowerUnknown
}
