package compute

import (
	"errors"
	"strings"

	"github.com/artpar/novagate/internal/core/flavor"
)

// ProvisioningParameters is the fully resolved provider create call.
type ProvisioningParameters struct {
	Hostname string
	Domain   string
	ImageRef string

	FlavorID  string
	CPUs      int
	MemoryMB  int
	DiskGB    int
	LocalDisk bool

	Datacenter string
	SSHKeyIDs  []string

	// Zero VLAN ids are unset; a nil PrivateOnly leaves the provider default.
	PublicVLAN  int64
	PrivateVLAN int64
	PrivateOnly *bool

	UserData string
}

// Identity is the naming fragment of a create call.
type Identity struct {
	Hostname string
	Domain   string
	ImageRef string
}

// Fragments are the independently resolved pieces of a create call.
type Fragments struct {
	Identity   Identity
	Flavor     flavor.Flavor
	SSHKeyIDs  []string
	UserData   string
	Datacenter string
	Network    NetworkAssignment
}

// BuildParameters merges resolver fragments and validates the result.
func BuildParameters(f Fragments) (ProvisioningParameters, error) {
	keys := f.SSHKeyIDs
	if keys == nil {
		keys = []string{}
	}
	p := ProvisioningParameters{
		Hostname:    f.Identity.Hostname,
		Domain:      f.Identity.Domain,
		ImageRef:    f.Identity.ImageRef,
		FlavorID:    f.Flavor.ID,
		CPUs:        f.Flavor.CPUs,
		MemoryMB:    f.Flavor.MemoryMB,
		DiskGB:      f.Flavor.DiskGB,
		LocalDisk:   f.Flavor.LocalDisk(),
		Datacenter:  f.Datacenter,
		SSHKeyIDs:   keys,
		PublicVLAN:  f.Network.PublicVLAN,
		PrivateVLAN: f.Network.PrivateVLAN,
		PrivateOnly: f.Network.PrivateOnly,
		UserData:    f.UserData,
	}
	if err := p.Validate(); err != nil {
		return ProvisioningParameters{}, err
	}
	return p, nil
}

// Validate checks every field the provider requires is populated.
func (p ProvisioningParameters) Validate() error {
	switch {
	case p.Hostname == "":
		return missing("hostname")
	case p.Domain == "":
		return missing("domain")
	case p.ImageRef == "":
		return missing("image")
	case p.CPUs <= 0:
		return missing("cpus")
	case p.MemoryMB <= 0:
		return missing("memory")
	case p.Datacenter == "":
		return missing("datacenter")
	case p.UserData == "":
		return missing("user data")
	case p.PublicVLAN < 0 || p.PrivateVLAN < 0:
		return NewInvalidRequestError("VLAN ids must be positive")
	}
	return nil
}

func missing(field string) *Error {
	return NewInvalidRequestError("incomplete provisioning parameters: missing %s", field)
}

// ResolveIdentity derives hostname, domain and image from a request. A
// dotted name carries its own domain; otherwise defaultDomain applies.
func ResolveIdentity(req CreateServerRequest, defaultDomain string) (Identity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Identity{}, NewInvalidRequestError("Server name is required")
	}
	if req.ImageRef == "" {
		return Identity{}, NewInvalidRequestError("imageRef is required")
	}
	if req.MaxCount > 0 && req.MinCount > req.MaxCount {
		return Identity{}, NewInvalidRequestError("min_count cannot be greater than max_count")
	}

	hostname, domain := name, defaultDomain
	if i := strings.Index(name, "."); i >= 0 {
		hostname, domain = name[:i], name[i+1:]
	}
	if hostname == "" || domain == "" {
		return Identity{}, NewInvalidRequestError("Invalid server name %q", name)
	}

	return Identity{Hostname: hostname, Domain: domain, ImageRef: string(req.ImageRef)}, nil
}

// ResolveFlavor looks up a flavor reference, failing with InvalidRequest.
func ResolveFlavor(ref Ref) (flavor.Flavor, error) {
	f, err := flavor.Resolve(string(ref))
	if err != nil {
		if errors.Is(err, flavor.ErrUnknownFlavor) {
			return flavor.Flavor{}, NewInvalidRequestError("Invalid flavorRef %q provided.", string(ref))
		}
		return flavor.Flavor{}, err
	}
	return f, nil
}
