package provider

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/novagate/internal/core/guest"
)

func TestHetznerClient_ToGuest(t *testing.T) {
	p := NewHetznerClient("tok", "", testLogger())
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	s := &hcloud.Server{
		ID:      4711,
		Name:    "web1.acme.com",
		Status:  hcloud.ServerStatusRunning,
		Created: created,
		ServerType: &hcloud.ServerType{
			Name: "cx22", Cores: 2, Memory: 4, Disk: 40, StorageType: hcloud.StorageTypeLocal,
		},
		Image:  &hcloud.Image{Name: "ubuntu-22.04"},
		Labels: map[string]string{flavorKey: "1", domainKey: "acme.com"},
		PublicNet: hcloud.ServerPublicNet{
			IPv4: hcloud.ServerPublicNetIPv4{IP: net.ParseIP("203.0.113.7")},
			IPv6: hcloud.ServerPublicNetIPv6{IP: net.ParseIP("2001:db8::1")},
		},
		PrivateNet: []hcloud.ServerPrivateNet{{IP: net.ParseIP("10.0.0.3")}},
		Datacenter: &hcloud.Datacenter{ID: 2, Location: &hcloud.Location{Name: "fsn1", City: "Falkenstein"}},
	}

	g := p.toGuest(s)
	assert.Equal(t, "4711", g.ID)
	assert.Equal(t, "web1", g.Hostname)
	assert.Equal(t, "acme.com", g.Domain)
	assert.Equal(t, "web1.acme.com", g.FullyQualifiedDomainName)
	assert.Equal(t, created, g.CreateDate)
	assert.Equal(t, 1, g.StartCPUs, "ordered flavor wins over the native size")
	assert.Equal(t, 1024, g.MaxMemory)
	assert.Equal(t, 25, g.DiskGB)
	assert.Equal(t, "203.0.113.7", g.PrimaryIPAddress)
	assert.Equal(t, "2001:db8::1", g.PrimaryIPv6Address)
	assert.Equal(t, "10.0.0.3", g.PrimaryBackendIPAddress)
	assert.Equal(t, "ubuntu-22.04", g.ImageName)
	require.NotNil(t, g.Datacenter)
	assert.Equal(t, "fsn1", g.Datacenter.Name)
	assert.Equal(t, guest.StatusActive, g.StatusKey())
	assert.Equal(t, guest.PowerRunning, g.PowerKey())
	assert.Empty(t, g.TransactionName())
}

func TestHetznerClient_ToGuest_NativeSize(t *testing.T) {
	p := NewHetznerClient("tok", "", testLogger())
	g := p.toGuest(&hcloud.Server{
		ID:         1,
		Name:       "db1",
		ServerType: &hcloud.ServerType{Cores: 4, Memory: 8, Disk: 80},
	})
	assert.Equal(t, "db1", g.Hostname)
	assert.Empty(t, g.Domain)
	assert.Equal(t, 4, g.StartCPUs)
	assert.Equal(t, 8192, g.MaxMemory)
	assert.Empty(t, g.PrimaryIPAddress)
}

func TestHetznerState(t *testing.T) {
	tests := []struct {
		status hcloud.ServerStatus
		locked bool
		want   [3]string
	}{
		{hcloud.ServerStatusRunning, false, [3]string{guest.StatusActive, guest.PowerRunning, ""}},
		{hcloud.ServerStatusOff, false, [3]string{guest.StatusActive, guest.PowerHalted, ""}},
		{hcloud.ServerStatusInitializing, false, [3]string{guest.StatusActive, guest.PowerHalted, guest.TransactionProvision}},
		{hcloud.ServerStatusRebuilding, false, [3]string{guest.StatusActive, guest.PowerRunning, guest.TransactionReload}},
		{hcloud.ServerStatusMigrating, false, [3]string{guest.StatusActive, guest.PowerRunning, guest.TransactionMigrate}},
		{hcloud.ServerStatusDeleting, false, [3]string{guest.StatusDeactive, guest.PowerHalted, ""}},
		{hcloud.ServerStatusUnknown, false, [3]string{guest.StatusDisconnected, guest.PowerRunning, ""}},
		{hcloud.ServerStatusRunning, true, [3]string{guest.StatusActive, guest.PowerRunning, guest.TransactionCapture}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			st, power, tx := hetznerState(tt.status, tt.locked)
			g := guest.Guest{Status: st, PowerState: power, ActiveTransaction: tx}
			assert.Equal(t, tt.want, [3]string{g.StatusKey(), g.PowerKey(), g.TransactionName()})
		})
	}
}

func TestHetznerClient_Fail(t *testing.T) {
	p := NewHetznerClient("tok", "", testLogger())

	err := p.fail("GetInstance", hcloud.Error{Code: hcloud.ErrorCodeNotFound, Message: "server not found"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = p.fail("PowerOn", hcloud.Error{Code: hcloud.ErrorCodeRateLimitExceeded, Message: "slow down"})
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.True(t, pErr.Retryable)
	assert.Equal(t, "slow down", pErr.Message)

	err = p.fail("CreateInstance", hcloud.Error{Code: hcloud.ErrorCodeInvalidInput, Message: "invalid input in field 'image'"})
	require.ErrorAs(t, err, &pErr)
	assert.False(t, pErr.Retryable)
	assert.Equal(t, "invalid input in field 'image'", pErr.Error())

	err = p.fail("CreateInstance", errors.New("dial tcp: timeout"))
	require.ErrorAs(t, err, &pErr)
	assert.False(t, pErr.Retryable)
}

func TestParseHetznerID(t *testing.T) {
	id, err := parseHetznerID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "-1", "0"} {
		_, err := parseHetznerID(bad)
		assert.ErrorIs(t, err, ErrNotFound, bad)
	}
}

func TestHetznerImage(t *testing.T) {
	assert.Equal(t, &hcloud.Image{ID: 67794396}, hetznerImage("67794396"))
	assert.Equal(t, &hcloud.Image{Name: "ubuntu-22.04"}, hetznerImage("ubuntu-22.04"))
}
