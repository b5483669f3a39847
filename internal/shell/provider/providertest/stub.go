// Package providertest provides an in-memory provider.Client for tests.
package providertest

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/core/guest"
	"github.com/artpar/novagate/internal/shell/provider"
)

// Call records one facade invocation.
type Call struct {
	Op   string
	ID   string
	Args []any
}

// Stub is a provider.Client backed by a guest map. Set Err[op] to make an
// operation fail.
type Stub struct {
	mu sync.Mutex

	Guests      map[string]guest.Guest
	Devices     map[string][]guest.BlockDevice
	PrivateVLAN []int64
	PublicVLAN  []int64
	SSHKeys     []guest.SSHKey
	Err         map[string]error

	// Created is returned by CreateInstance; its ID defaults to "1000".
	Created guest.Guest

	Calls  []Call
	Params []compute.ProvisioningParameters
}

// New returns an empty stub.
func New() *Stub {
	return &Stub{
		Guests:  map[string]guest.Guest{},
		Devices: map[string][]guest.BlockDevice{},
		Err:     map[string]error{},
	}
}

var _ provider.Client = (*Stub)(nil)

func (s *Stub) record(op, id string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, Call{Op: op, ID: id, Args: args})
	return s.Err[op]
}

// Ops returns the names of recorded calls in order.
func (s *Stub) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]string, 0, len(s.Calls))
	for _, c := range s.Calls {
		ops = append(ops, c.Op)
	}
	return ops
}

func (s *Stub) lookup(op, id string) (guest.Guest, error) {
	if err := s.record(op, id); err != nil {
		return guest.Guest{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.Guests[id]
	if !ok {
		return guest.Guest{}, provider.ErrNotFound
	}
	return g, nil
}

func (s *Stub) lifecycle(op, id string, args ...any) error {
	if err := s.record(op, id, args...); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Guests[id]; !ok {
		return provider.ErrNotFound
	}
	return nil
}

func (s *Stub) CreateInstance(_ context.Context, params compute.ProvisioningParameters) (guest.Guest, error) {
	if err := s.record("CreateInstance", ""); err != nil {
		return guest.Guest{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Params = append(s.Params, params)

	g := s.Created
	if g.ID == "" {
		g.ID = "1000"
	}
	if g.Hostname == "" {
		g.Hostname = params.Hostname
		g.Domain = params.Domain
		g.StartCPUs = params.CPUs
		g.MaxMemory = params.MemoryMB
		g.DiskGB = params.DiskGB
		g.Status = &guest.Status{KeyName: guest.StatusActive}
		g.PowerState = &guest.PowerState{KeyName: guest.PowerHalted}
		g.ActiveTransaction = &guest.Transaction{Name: guest.TransactionProvision}
		g.Datacenter = &guest.Datacenter{Name: params.Datacenter}
	}
	s.Guests[g.ID] = g
	return g, nil
}

func (s *Stub) ListInstances(_ context.Context, filter provider.ListFilter) ([]guest.Guest, error) {
	if err := s.record("ListInstances", "", filter); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]guest.Guest, 0, len(s.Guests))
	for _, g := range s.Guests {
		if filter.Name != "" && g.Hostname != filter.Name {
			continue
		}
		if filter.Datacenter != "" && (g.Datacenter == nil || g.Datacenter.Name != filter.Datacenter) {
			continue
		}
		out = append(out, g)
	}
	sortByID(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Stub) GetInstance(_ context.Context, id string) (guest.Guest, error) {
	return s.lookup("GetInstance", id)
}

func (s *Stub) PowerOn(_ context.Context, id string) error  { return s.lifecycle("PowerOn", id) }
func (s *Stub) PowerOff(_ context.Context, id string) error { return s.lifecycle("PowerOff", id) }

func (s *Stub) RebootSoft(_ context.Context, id string) error {
	return s.lifecycle("RebootSoft", id)
}

func (s *Stub) RebootHard(_ context.Context, id string) error {
	return s.lifecycle("RebootHard", id)
}

func (s *Stub) RebootDefault(_ context.Context, id string) error {
	return s.lifecycle("RebootDefault", id)
}

func (s *Stub) Upgrade(_ context.Context, id string, f flavor.Flavor) error {
	return s.lifecycle("Upgrade", id, f)
}

func (s *Stub) ConfirmResize(_ context.Context, id string) error {
	return s.lifecycle("ConfirmResize", id)
}

func (s *Stub) GetBlockDevices(_ context.Context, id string) ([]guest.BlockDevice, error) {
	if err := s.lifecycle("GetBlockDevices", id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Devices[id], nil
}

func (s *Stub) CaptureArchive(_ context.Context, id, name string, devices []guest.BlockDevice) error {
	return s.lifecycle("CaptureArchive", id, name, devices)
}

func (s *Stub) ListPrivateVLANs(_ context.Context, account string) ([]int64, error) {
	if err := s.record("ListPrivateVLANs", "", account); err != nil {
		return nil, err
	}
	return s.PrivateVLAN, nil
}

func (s *Stub) ListPublicVLANs(_ context.Context, account string) ([]int64, error) {
	if err := s.record("ListPublicVLANs", "", account); err != nil {
		return nil, err
	}
	return s.PublicVLAN, nil
}

func (s *Stub) ListSSHKeys(_ context.Context, account, name string) ([]guest.SSHKey, error) {
	if err := s.record("ListSSHKeys", "", account, name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]guest.SSHKey, 0)
	for _, k := range s.SSHKeys {
		if k.Label == name {
			out = append(out, k)
		}
	}
	return out, nil
}

func sortByID(guests []guest.Guest) {
	sort.Slice(guests, func(i, j int) bool { return guests[i].ID < guests[j].ID })
}
