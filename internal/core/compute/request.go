package compute

import (
	"bytes"
	"encoding/json"
	"errors"
)

// CreateServerEnvelope is the body of a create-server request.
type CreateServerEnvelope struct {
	Server *CreateServerRequest `json:"server"`
}

// CreateServerRequest is the raw client payload for creating an instance.
type CreateServerRequest struct {
	Name             string       `json:"name"`
	ImageRef         Ref          `json:"imageRef"`
	FlavorRef        Ref          `json:"flavorRef"`
	AvailabilityZone string       `json:"availability_zone,omitempty"`
	MinCount         int          `json:"min_count,omitempty"`
	MaxCount         int          `json:"max_count,omitempty"`
	Networks         []NetworkRef `json:"networks,omitempty"`
	KeyName          string       `json:"key_name,omitempty"`

	Metadata    json.RawMessage `json:"metadata,omitempty"`
	UserData    json.RawMessage `json:"user_data,omitempty"`
	Personality json.RawMessage `json:"personality,omitempty"`
}

// NetworkRef names one network the instance should be attached to.
type NetworkRef struct {
	UUID Ref `json:"uuid"`
}

// Ref is an identifier clients send either as a JSON string or a JSON number.
type Ref string

var errInvalidRef = errors.New("identifier must be a string or a number")

// UnmarshalJSON accepts strings, numbers and null.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errInvalidRef
	}
	*r = Ref(n.String())
	return nil
}

// DecodeCreateServer parses a create-server body.
func DecodeCreateServer(body []byte) (CreateServerRequest, error) {
	var env CreateServerEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return CreateServerRequest{}, NewInvalidRequestError("%s", MsgMalformedBody)
	}
	if env.Server == nil {
		return CreateServerRequest{}, NewInvalidRequestError("%s", MsgMalformedBody)
	}
	return *env.Server, nil
}

// present reports whether a raw field was supplied with a non-null value.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
