package compute

import (
	"strconv"
)

// Network sentinels clients may use instead of a VLAN id.
const (
	NetworkPublic  = "public"
	NetworkPrivate = "private"
)

// MaxNetworks is the number of networks an instance can be attached to: at
// most one public and one private VLAN.
const MaxNetworks = 2

// NetworkAssignment is the network fragment of a create call.
type NetworkAssignment struct {
	PublicVLAN  int64
	PrivateVLAN int64
	PrivateOnly *bool
}

type networkClass int

const (
	classNumeric networkClass = iota
	classPublic
	classPrivate
)

type plannedNetwork struct {
	class networkClass
	vlan  int64
}

// NetworkPlan is the provisional classification of requested networks.
// Numeric VLAN ids still need the account's VLAN sets to be resolved.
type NetworkPlan struct {
	entries []plannedNetwork
}

// PlanNetworks validates the requested networks without touching the
// provider.
func PlanNetworks(refs []NetworkRef) (NetworkPlan, error) {
	if len(refs) > MaxNetworks {
		return NetworkPlan{}, NewInvalidRequestError("Too many networks specified: %d (maximum %d)", len(refs), MaxNetworks)
	}

	plan := NetworkPlan{entries: make([]plannedNetwork, 0, len(refs))}
	sentinels := 0
	for _, ref := range refs {
		id := string(ref.UUID)
		switch id {
		case NetworkPublic:
			plan.entries = append(plan.entries, plannedNetwork{class: classPublic})
			sentinels++
		case NetworkPrivate:
			plan.entries = append(plan.entries, plannedNetwork{class: classPrivate})
			sentinels++
		default:
			vlan, err := strconv.ParseInt(id, 10, 64)
			if err != nil || vlan <= 0 {
				return NetworkPlan{}, NewInvalidRequestError("Invalid network identifier format: %q", id)
			}
			plan.entries = append(plan.entries, plannedNetwork{class: classNumeric, vlan: vlan})
		}
	}

	if sentinels > 0 && len(plan.entries) > 1 {
		return NetworkPlan{}, NewInvalidRequestError("The %q and %q networks cannot be combined with other networks", NetworkPublic, NetworkPrivate)
	}
	if len(plan.entries) == 2 && plan.entries[0].vlan == plan.entries[1].vlan {
		return NetworkPlan{}, NewInvalidRequestError("Network %d specified more than once", plan.entries[0].vlan)
	}

	return plan, nil
}

// NeedsVLANLookup reports whether resolving the plan requires the account's
// public and private VLAN sets.
func (p NetworkPlan) NeedsVLANLookup() bool {
	for _, e := range p.entries {
		if e.class == classNumeric {
			return true
		}
	}
	return false
}

// Resolve completes the plan against the account's VLAN sets. Each VLAN must
// belong to exactly one set, and two VLANs must be one public and one
// private; anything else fails instead of guessing.
func (p NetworkPlan) Resolve(privateVLANs, publicVLANs []int64) (NetworkAssignment, error) {
	var out NetworkAssignment
	if len(p.entries) == 0 {
		return out, nil
	}

	if len(p.entries) == 1 && p.entries[0].class != classNumeric {
		privateOnly := p.entries[0].class == classPrivate
		out.PrivateOnly = &privateOnly
		return out, nil
	}

	private := toSet(privateVLANs)
	public := toSet(publicVLANs)

	for _, e := range p.entries {
		_, isPrivate := private[e.vlan]
		_, isPublic := public[e.vlan]
		switch {
		case isPrivate && isPublic:
			return NetworkAssignment{}, NewInvalidRequestError("Network %d is ambiguous: listed as both public and private", e.vlan)
		case isPrivate:
			if out.PrivateVLAN != 0 {
				return NetworkAssignment{}, NewInvalidRequestError("Only one private network may be specified")
			}
			out.PrivateVLAN = e.vlan
		case isPublic:
			if out.PublicVLAN != 0 {
				return NetworkAssignment{}, NewInvalidRequestError("Only one public network may be specified")
			}
			out.PublicVLAN = e.vlan
		default:
			return NetworkAssignment{}, NewInvalidRequestError("Network %d could not be found", e.vlan)
		}
	}

	privateOnly := out.PublicVLAN == 0
	out.PrivateOnly = &privateOnly
	return out, nil
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
