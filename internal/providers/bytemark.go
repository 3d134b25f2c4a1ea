package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/retry"
)

const (
	bytemarkEndpoint     = "https://uk0.bigv.io"
	bytemarkAuthEndpoint = "https://auth.bytemark.co.uk"
	bytemarkTimeout      = 30 * time.Second

	// Error bodies are echoed to the user; anything longer is truncated.
	maxErrorBody = 512
)

// Compile-time checks.
var (
	_ domain.Backend = (*BytemarkBackend)(nil)
	_ domain.Client  = (*BytemarkClient)(nil)
)

// BytemarkBackend talks to the Bytemark cloud API. Credentials are
// exchanged for a session token at the auth endpoint; every other call
// goes to the API endpoint with that token as a bearer credential.
// It uses a direct HTTP client because no SDK exists for this API.
type BytemarkBackend struct {
	endpoint     string
	authEndpoint string
	client       *http.Client
	retry        retry.Config
}

// NewBytemarkBackend builds a backend from opts, filling in the public
// endpoints and a default HTTP client.
func NewBytemarkBackend(opts Options) *BytemarkBackend {
	b := &BytemarkBackend{
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		authEndpoint: strings.TrimRight(opts.AuthEndpoint, "/"),
		client:       opts.HTTPClient,
		retry:        opts.Retry,
	}
	if b.endpoint == "" {
		b.endpoint = bytemarkEndpoint
	}
	if b.authEndpoint == "" {
		b.authEndpoint = bytemarkAuthEndpoint
	}
	if b.client == nil {
		b.client = &http.Client{Timeout: bytemarkTimeout}
	}
	if b.retry.MaxAttempts == 0 {
		b.retry = retry.DefaultConfig()
	}
	return b
}

// RegisterBytemark registers the Bytemark backend factory with the global registry.
func RegisterBytemark() {
	Register("bytemark", func(opts Options) (domain.Backend, error) {
		return NewBytemarkBackend(opts), nil
	}, Defaults{
		Zone:            "york",
		HardwareProfile: "virtio2013",
		StorageGrade:    "sata",
	})
}

func (b *BytemarkBackend) GetDisplayName() string {
	return "Bytemark"
}

type bmSessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Yubikey  string `json:"yubikey,omitempty"`
}

// Authenticate opens a session. Transient failures are retried; a
// rejected password is returned at once as a 401/403 ProviderError.
func (b *BytemarkBackend) Authenticate(ctx context.Context, creds domain.Credentials) (domain.SessionToken, error) {
	body, err := json.Marshal(bmSessionRequest{
		Username: creds.Username,
		Password: creds.Password,
		Yubikey:  creds.OTP,
	})
	if err != nil {
		return "", fmt.Errorf("bytemark: failed to encode session request: %w", err)
	}

	var token string
	err = retry.Do(ctx, b.retry, retry.IsRetryable, func() error {
		raw, err := do(ctx, b.client, http.MethodPost, b.authEndpoint+"/session", "", body)
		if err != nil {
			return err
		}
		token = strings.TrimSpace(string(raw))
		return nil
	})
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("bytemark: auth endpoint returned an empty session token")
	}

	return domain.SessionToken(token), nil
}

// Connect returns a client bound to session.
func (b *BytemarkBackend) Connect(session domain.SessionToken) (domain.Client, error) {
	if session == "" {
		return nil, fmt.Errorf("bytemark: empty session token")
	}
	return &BytemarkClient{
		token:   string(session),
		baseURL: b.endpoint,
		client:  b.client,
	}, nil
}

// BytemarkClient issues API calls for a single authenticated session.
type BytemarkClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// --- API request/response types ---

type bmAccount struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type bmGroup struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	AccountID int    `json:"account_id"`
}

type bmNetworkInterface struct {
	IPs []string `json:"ips"`
}

type bmVM struct {
	ID                int                  `json:"id"`
	Name              string               `json:"name"`
	Hostname          string               `json:"hostname"`
	GroupID           int                  `json:"group_id"`
	Cores             int                  `json:"cores"`
	Memory            int                  `json:"memory"`
	ZoneName          string               `json:"zone_name"`
	HardwareProfile   string               `json:"hardware_profile"`
	PowerOn           *bool                `json:"power_on"`
	Deleted           bool                 `json:"deleted"`
	NetworkInterfaces []bmNetworkInterface `json:"network_interfaces"`
}

type bmVMSpec struct {
	Name            string `json:"name"`
	ZoneName        string `json:"zone_name,omitempty"`
	Cores           int    `json:"cores"`
	Memory          int    `json:"memory"`
	HardwareProfile string `json:"hardware_profile,omitempty"`
	CDROMURL        string `json:"cdrom_url,omitempty"`
	PowerOn         bool   `json:"power_on"`
	AutorebootOn    bool   `json:"autoreboot_on"`
}

type bmDisc struct {
	StorageGrade string `json:"storage_grade"`
	// Size is in MiB.
	Size int `json:"size"`
}

type bmReimage struct {
	Distribution string `json:"distribution"`
	RootPassword string `json:"root_password,omitempty"`
}

type bmCreateRequest struct {
	VirtualMachine bmVMSpec   `json:"virtual_machine"`
	Discs          []bmDisc   `json:"discs"`
	Reimage        *bmReimage `json:"reimage,omitempty"`
}

type bmCreateResponse struct {
	VirtualMachine bmVM `json:"virtual_machine"`
}

type bmPowerRequest struct {
	PowerOn      bool `json:"power_on"`
	AutorebootOn bool `json:"autoreboot_on"`
}

type bmRDNSRequest struct {
	RDNS string `json:"rdns"`
}

// --- HTTP helpers ---

// do sends one request and returns the response body. Non-2xx answers
// and transport failures come back as *domain.ProviderError.
func do(ctx context.Context, client *http.Client, method, rawURL, token string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("bytemark: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Method: method, URL: rawURL, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{StatusCode: resp.StatusCode, Method: method, URL: rawURL, Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ProviderError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        rawURL,
			Message:    errorMessage(resp.StatusCode, data),
		}
	}

	return data, nil
}

func errorMessage(status int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(status)
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}

func (c *BytemarkClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("bytemark: failed to encode request: %w", err)
		}
	}

	rawURL := c.baseURL + path
	data, err := do(ctx, c.client, method, rawURL, c.token, body)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.ProviderError{Method: method, URL: rawURL, Message: "malformed response: " + err.Error(), Err: err}
	}
	return nil
}

func groupPath(account, group string) string {
	return "/accounts/" + url.PathEscape(account) + "/groups/" + url.PathEscape(group)
}

func vmPath(vm domain.VM) string {
	return groupPath(vm.AccountName, vm.GroupName) + "/virtual_machines/" + url.PathEscape(vm.ID)
}

// --- Client implementation ---

func (c *BytemarkClient) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var out []bmAccount
	if err := c.doJSON(ctx, http.MethodGet, "/accounts", nil, &out); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(out))
	for _, a := range out {
		accounts = append(accounts, domain.Account{ID: strconv.Itoa(a.ID), Name: a.Name})
	}
	return accounts, nil
}

func (c *BytemarkClient) ListGroups(ctx context.Context, account domain.Account) ([]domain.Group, error) {
	var out []bmGroup
	path := "/accounts/" + url.PathEscape(account.Name) + "/groups"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(out))
	for _, g := range out {
		groups = append(groups, toDomainGroup(g, account))
	}
	return groups, nil
}

func (c *BytemarkClient) CreateGroup(ctx context.Context, account domain.Account, name string) (*domain.Group, error) {
	var out bmGroup
	path := "/accounts/" + url.PathEscape(account.Name) + "/groups"
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}

	group := toDomainGroup(out, account)
	if group.Name == "" {
		group.Name = name
	}
	return &group, nil
}

func (c *BytemarkClient) ListVMs(ctx context.Context, group domain.Group, includeDeleted bool) ([]domain.VM, error) {
	path := groupPath(group.AccountName, group.Name) + "/virtual_machines"
	if includeDeleted {
		path += "?include_deleted=true"
	}

	var out []bmVM
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	vms := make([]domain.VM, 0, len(out))
	for _, v := range out {
		if v.Deleted && !includeDeleted {
			continue
		}
		vms = append(vms, toDomainVM(v, group))
	}
	return vms, nil
}

// CreateVM submits the machine, its discs and its image in one request.
// Reverse DNS is applied afterwards to each address the new machine was
// given; a failure there returns the created VM alongside the error.
func (c *BytemarkClient) CreateVM(ctx context.Context, group domain.Group, spec domain.VMSpec) (*domain.VM, error) {
	req := bmCreateRequest{
		VirtualMachine: bmVMSpec{
			Name:            spec.Name,
			ZoneName:        spec.Zone,
			Cores:           spec.Cores,
			Memory:          spec.MemoryGB * 1024,
			HardwareProfile: spec.HardwareProfile,
			CDROMURL:        spec.CDROMURL,
			PowerOn:         spec.PowerOn,
			AutorebootOn:    spec.PowerOn,
		},
		Discs: make([]bmDisc, 0, len(spec.Discs)),
	}
	for _, d := range spec.Discs {
		req.Discs = append(req.Discs, bmDisc{StorageGrade: d.StorageGrade, Size: d.SizeGB * 1024})
	}
	if spec.Distribution != "" {
		req.Reimage = &bmReimage{Distribution: spec.Distribution, RootPassword: spec.RootPassword}
	}

	var out bmCreateResponse
	if err := c.doJSON(ctx, http.MethodPost, groupPath(group.AccountName, group.Name)+"/vm_create", req, &out); err != nil {
		return nil, err
	}

	vm := toDomainVM(out.VirtualMachine, group)
	if spec.ReverseDNS == "" {
		return &vm, nil
	}

	for _, nic := range out.VirtualMachine.NetworkInterfaces {
		for _, ip := range nic.IPs {
			if err := c.doJSON(ctx, http.MethodPut, "/ips/"+url.PathEscape(ip), bmRDNSRequest{RDNS: spec.ReverseDNS}, nil); err != nil {
				return &vm, err
			}
		}
	}
	return &vm, nil
}

func (c *BytemarkClient) DeleteVM(ctx context.Context, vm domain.VM, purge bool) error {
	path := vmPath(vm)
	if purge {
		path += "?purge=true"
	}
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *BytemarkClient) PowerOn(ctx context.Context, vm domain.VM) (*domain.VM, error) {
	return c.setPower(ctx, vm, true)
}

func (c *BytemarkClient) PowerOff(ctx context.Context, vm domain.VM) (*domain.VM, error) {
	return c.setPower(ctx, vm, false)
}

// setPower flips the power flag and reads the machine back. Autoreboot
// follows power so a stopped machine stays stopped after host maintenance.
func (c *BytemarkClient) setPower(ctx context.Context, vm domain.VM, on bool) (*domain.VM, error) {
	path := vmPath(vm)
	if err := c.doJSON(ctx, http.MethodPut, path, bmPowerRequest{PowerOn: on, AutorebootOn: on}, nil); err != nil {
		return nil, err
	}

	var out bmVM
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	got := toDomainVM(out, domain.Group{ID: vm.GroupID, Name: vm.GroupName, AccountName: vm.AccountName})
	return &got, nil
}

// --- Mapping ---

func toDomainGroup(g bmGroup, account domain.Account) domain.Group {
	return domain.Group{
		ID:          strconv.Itoa(g.ID),
		Name:        g.Name,
		AccountID:   account.ID,
		AccountName: account.Name,
	}
}

func toDomainVM(v bmVM, group domain.Group) domain.VM {
	vm := domain.VM{
		ID:              strconv.Itoa(v.ID),
		Name:            v.Name,
		Hostname:        v.Hostname,
		AccountName:     group.AccountName,
		GroupID:         group.ID,
		GroupName:       group.Name,
		Power:           domain.PowerUnknown,
		Existence:       domain.ExistencePresent,
		Cores:           v.Cores,
		MemoryGB:        v.Memory / 1024,
		Zone:            v.ZoneName,
		HardwareProfile: v.HardwareProfile,
	}
	if v.GroupID != 0 {
		vm.GroupID = strconv.Itoa(v.GroupID)
	}
	if v.PowerOn != nil {
		vm.Power = domain.PowerOff
		if *v.PowerOn {
			vm.Power = domain.PowerOn
		}
	}
	if v.Deleted {
		vm.Existence = domain.ExistenceDeleted
	}
	for _, nic := range v.NetworkInterfaces {
		for _, ip := range nic.IPs {
			if vm.PrimaryIPv4 == "" && !strings.Contains(ip, ":") {
				vm.PrimaryIPv4 = ip
			}
		}
	}
	return vm
}
