package compute

import (
	"encoding/json"
	"strings"

	"github.com/artpar/novagate/internal/core/guest"
)

// =============================================================================
// SSH Keys
// =============================================================================

// SelectSSHKeys picks the key ids for a requested key name from the keys the
// provider matched on that name. No name means no keys. Exactly one match is
// required; several matches are as unusable as none.
func SelectSSHKeys(name string, matches []guest.SSHKey) ([]string, error) {
	if name == "" {
		return []string{}, nil
	}
	switch len(matches) {
	case 0:
		return nil, NewInvalidRequestError("KeyPair %q could not be found", name)
	case 1:
		return []string{matches[0].ID}, nil
	default:
		return nil, NewInvalidRequestError("KeyPair name %q matches %d keys", name, len(matches))
	}
}

// =============================================================================
// User Data
// =============================================================================

type userDataBlob struct {
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Personality json.RawMessage `json:"personality,omitempty"`
	UserData    json.RawMessage `json:"user_data,omitempty"`
}

// AssembleUserData serializes metadata, personality and user_data into one
// JSON object keyed by field name. Absent fields are left out.
func AssembleUserData(req CreateServerRequest) (string, error) {
	var blob userDataBlob
	if present(req.Metadata) {
		blob.Metadata = req.Metadata
	}
	if present(req.Personality) {
		blob.Personality = req.Personality
	}
	if present(req.UserData) {
		blob.UserData = req.UserData
	}

	out, err := json.Marshal(blob)
	if err != nil {
		return "", NewInvalidRequestError("Invalid user data: %v", err)
	}
	return string(out), nil
}

// =============================================================================
// Datacenter
// =============================================================================

// DatacenterResolver maps an availability zone onto the provider datacenter.
type DatacenterResolver struct {
	defaultZone string
}

// NewDatacenterResolver creates a resolver with a fixed fallback zone.
func NewDatacenterResolver(defaultZone string) DatacenterResolver {
	return DatacenterResolver{defaultZone: strings.TrimSpace(defaultZone)}
}

// DefaultZone returns the configured fallback zone.
func (r DatacenterResolver) DefaultZone() string {
	return r.defaultZone
}

// Resolve returns the requested zone verbatim, or the default when none was
// requested.
func (r DatacenterResolver) Resolve(zone string) (string, error) {
	if zone != "" {
		return zone, nil
	}
	if r.defaultZone != "" {
		return r.defaultZone, nil
	}
	return "", NewInvalidRequestError("An availability zone must be specified")
}
