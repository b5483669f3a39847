package compute

import (
	"net"
	"strings"
	"time"

	"github.com/artpar/novagate/internal/core/flavor"
	"github.com/artpar/novagate/internal/core/guest"
)

// Standardized server statuses.
const (
	StatusActive    = "ACTIVE"
	StatusBuild     = "BUILD"
	StatusShutoff   = "SHUTOFF"
	StatusPaused    = "PAUSED"
	StatusSuspended = "SUSPENDED"
	StatusReboot    = "REBOOT"
	StatusResize    = "RESIZE"
	StatusRebuild   = "REBUILD"
	StatusMigrating = "MIGRATING"
	StatusError     = "ERROR"
	StatusDeleted   = "DELETED"
	StatusUnknown   = "UNKNOWN"
)

// Standardized power state codes.
const (
	PowerNoState   = 0
	PowerRunning   = 1
	PowerPaused    = 3
	PowerShutdown  = 4
	PowerSuspended = 7
)

// DefaultSecurityGroup is reported when the provider has none.
const DefaultSecurityGroup = "default"

// =============================================================================
// View Types
// =============================================================================

// Link is a hypermedia reference to a resource.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// Address is one IP address of an instance.
type Address struct {
	Version int    `json:"version"`
	Addr    string `json:"addr"`
	Type    string `json:"OS-EXT-IPS:type"`
}

// FlavorLink references the flavor an instance runs as.
type FlavorLink struct {
	ID    string `json:"id"`
	Links []Link `json:"links"`
}

// SecurityGroup names a security group applied to an instance.
type SecurityGroup struct {
	Name string `json:"name"`
}

// InstanceView is the standardized read model of an instance.
type InstanceView struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Status           string               `json:"status"`
	Updated          string               `json:"updated"`
	Created          string               `json:"created"`
	HostID           string               `json:"hostId"`
	UserID           string               `json:"user_id"`
	TenantID         string               `json:"tenant_id"`
	Addresses        map[string][]Address `json:"addresses"`
	Links            []Link               `json:"links"`
	ImageName        string               `json:"image_name"`
	Flavor           FlavorLink           `json:"flavor"`
	AccessIPv4       string               `json:"accessIPv4"`
	AccessIPv6       string               `json:"accessIPv6"`
	PowerState       int                  `json:"OS-EXT-STS:power_state"`
	VMState          string               `json:"OS-EXT-STS:vm_state"`
	TaskState        *string              `json:"OS-EXT-STS:task_state"`
	AvailabilityZone string               `json:"OS-EXT-AZ:availability_zone"`
	SecurityGroups   []SecurityGroup      `json:"security_groups"`
}

// ServerSummary is the short form returned by the server listing.
type ServerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Links []Link `json:"links"`
}

// FlavorView is the standardized representation of a catalog flavor.
type FlavorView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	RAM   int    `json:"ram"`
	VCPUs int    `json:"vcpus"`
	Disk  int    `json:"disk"`
	Links []Link `json:"links"`
}

// =============================================================================
// Links
// =============================================================================

// LinkBuilder renders resource URIs from the configured base URL.
type LinkBuilder struct {
	baseURL  string
	tenantID string
}

// NewLinkBuilder creates a builder for one tenant.
func NewLinkBuilder(baseURL, tenantID string) LinkBuilder {
	return LinkBuilder{baseURL: strings.TrimRight(baseURL, "/"), tenantID: tenantID}
}

// Server returns the self and bookmark links of a server.
func (b LinkBuilder) Server(id string) []Link {
	return []Link{
		{Href: b.baseURL + "/v2/" + b.tenantID + "/servers/" + id, Rel: "self"},
		{Href: b.baseURL + "/" + b.tenantID + "/servers/" + id, Rel: "bookmark"},
	}
}

// Flavor returns the self and bookmark links of a flavor.
func (b LinkBuilder) Flavor(id string) []Link {
	return []Link{
		{Href: b.baseURL + "/v2/" + b.tenantID + "/flavors/" + id, Rel: "self"},
		{Href: b.baseURL + "/" + b.tenantID + "/flavors/" + id, Rel: "bookmark"},
	}
}

// FlavorBookmark returns only the bookmark link of a flavor.
func (b LinkBuilder) FlavorBookmark(id string) []Link {
	return []Link{{Href: b.baseURL + "/" + b.tenantID + "/flavors/" + id, Rel: "bookmark"}}
}

// =============================================================================
// Translation
// =============================================================================

// NewInstanceView maps a provider guest onto the standardized view.
func NewInstanceView(g guest.Guest, links LinkBuilder) InstanceView {
	tenant := g.AccountID
	if tenant == "" {
		tenant = links.tenantID
	}

	status := ServerStatus(g)

	v := InstanceView{
		ID:               g.ID,
		Name:             g.Hostname,
		Status:           status,
		Updated:          formatTime(g.ModifyDate),
		Created:          formatTime(g.CreateDate),
		HostID:           g.ID,
		UserID:           g.UserRecordID(),
		TenantID:         tenant,
		Addresses:        addresses(g),
		Links:            links.Server(g.ID),
		ImageName:        g.ImageName,
		Flavor:           FlavorLink{Links: []Link{}},
		AccessIPv4:       g.PrimaryIPAddress,
		AccessIPv6:       g.PrimaryIPv6Address,
		PowerState:       PowerStateCode(g.PowerKey()),
		VMState:          vmState(status),
		TaskState:        taskState(g.TransactionName()),
		AvailabilityZone: availabilityZone(g.Datacenter),
		SecurityGroups:   securityGroups(g.SecurityGroups),
	}

	if f, ok := flavor.Match(g.StartCPUs, g.MaxMemory, g.DiskGB); ok {
		v.Flavor = FlavorLink{ID: f.ID, Links: links.FlavorBookmark(f.ID)}
	}

	return v
}

// NewServerSummary maps a provider guest onto the short listing form.
func NewServerSummary(g guest.Guest, links LinkBuilder) ServerSummary {
	return ServerSummary{ID: g.ID, Name: g.Hostname, Links: links.Server(g.ID)}
}

// NewFlavorView maps a catalog flavor onto its standardized view.
func NewFlavorView(f flavor.Flavor, links LinkBuilder) FlavorView {
	return FlavorView{
		ID:    f.ID,
		Name:  f.Name,
		RAM:   f.MemoryMB,
		VCPUs: f.CPUs,
		Disk:  f.DiskGB,
		Links: links.Flavor(f.ID),
	}
}

// ServerStatus derives the standardized status from the provider's status,
// active transaction and power state.
func ServerStatus(g guest.Guest) string {
	switch g.StatusKey() {
	case guest.StatusActive:
	case guest.StatusDisconnected:
		return StatusError
	case guest.StatusDeactive:
		return StatusDeleted
	default:
		return StatusUnknown
	}

	switch g.TransactionName() {
	case guest.TransactionProvision:
		return StatusBuild
	case guest.TransactionReboot:
		return StatusReboot
	case guest.TransactionResize:
		return StatusResize
	case guest.TransactionReload:
		return StatusRebuild
	case guest.TransactionMigrate:
		return StatusMigrating
	}

	switch g.PowerKey() {
	case guest.PowerHalted:
		return StatusShutoff
	case guest.PowerPaused:
		return StatusPaused
	case guest.PowerSuspended:
		return StatusSuspended
	default:
		return StatusActive
	}
}

// PowerStateCode maps a provider power state onto the standardized code.
func PowerStateCode(key string) int {
	switch key {
	case guest.PowerRunning:
		return PowerRunning
	case guest.PowerPaused:
		return PowerPaused
	case guest.PowerHalted:
		return PowerShutdown
	case guest.PowerSuspended:
		return PowerSuspended
	default:
		return PowerNoState
	}
}

func vmState(status string) string {
	switch status {
	case StatusBuild:
		return "building"
	case StatusShutoff:
		return "stopped"
	case StatusPaused:
		return "paused"
	case StatusSuspended:
		return "suspended"
	case StatusError:
		return "error"
	case StatusDeleted:
		return "deleted"
	case StatusUnknown:
		return ""
	default:
		return "active"
	}
}

func taskState(transaction string) *string {
	var state string
	switch transaction {
	case "":
		return nil
	case guest.TransactionProvision:
		state = "spawning"
	case guest.TransactionReboot:
		state = "rebooting"
	case guest.TransactionResize:
		state = "resize_migrating"
	case guest.TransactionReload:
		state = "rebuilding"
	case guest.TransactionMigrate:
		state = "migrating"
	case guest.TransactionCapture:
		state = "image_snapshot"
	default:
		state = strings.ToLower(transaction)
	}
	return &state
}

func addresses(g guest.Guest) map[string][]Address {
	out := map[string][]Address{
		"public":  {},
		"private": {},
	}
	if g.PrimaryIPAddress != "" {
		out["public"] = append(out["public"], fixedAddress(g.PrimaryIPAddress))
	}
	if g.PrimaryIPv6Address != "" {
		out["public"] = append(out["public"], fixedAddress(g.PrimaryIPv6Address))
	}
	if g.PrimaryBackendIPAddress != "" {
		out["private"] = append(out["private"], fixedAddress(g.PrimaryBackendIPAddress))
	}
	return out
}

func fixedAddress(addr string) Address {
	version := 4
	if ip := net.ParseIP(addr); ip != nil && ip.To4() == nil {
		version = 6
	}
	return Address{Version: version, Addr: addr, Type: "fixed"}
}

func availabilityZone(dc *guest.Datacenter) string {
	if dc == nil {
		return ""
	}
	return dc.Name
}

func securityGroups(names []string) []SecurityGroup {
	if len(names) == 0 {
		return []SecurityGroup{{Name: DefaultSecurityGroup}}
	}
	out := make([]SecurityGroup, 0, len(names))
	for _, n := range names {
		out = append(out, SecurityGroup{Name: n})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
