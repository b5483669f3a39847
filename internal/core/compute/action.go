package compute

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Action keys accepted in an action envelope.
const (
	ActionPowerOn       = "os-start"
	ActionPowerOff      = "os-stop"
	ActionReboot        = "reboot"
	ActionResize        = "resize"
	ActionConfirmResize = "confirmResize"
	ActionCreateImage   = "createImage"
)

// Action is one lifecycle operation parsed from an action envelope. The
// concrete types below are the only implementations.
type Action interface {
	// Key returns the envelope key the action was parsed from.
	Key() string
	isAction()
}

// PowerOn starts a stopped instance.
type PowerOn struct{}

// PowerOff stops a running instance.
type PowerOff struct{}

// RebootType selects how an instance is rebooted.
type RebootType string

const (
	RebootSoft    RebootType = "SOFT"
	RebootHard    RebootType = "HARD"
	RebootDefault RebootType = "DEFAULT"
)

// Reboot restarts an instance.
type Reboot struct {
	Type RebootType
}

// Resize moves an instance to another flavor.
type Resize struct {
	FlavorRef Ref
}

// ConfirmResize finalizes a previous resize.
type ConfirmResize struct{}

// CreateImage captures an instance's disks into an image.
type CreateImage struct {
	Name     string
	Metadata map[string]string
}

func (PowerOn) Key() string       { return ActionPowerOn }
func (PowerOff) Key() string      { return ActionPowerOff }
func (Reboot) Key() string        { return ActionReboot }
func (Resize) Key() string        { return ActionResize }
func (ConfirmResize) Key() string { return ActionConfirmResize }
func (CreateImage) Key() string   { return ActionCreateImage }

func (PowerOn) isAction()       {}
func (PowerOff) isAction()      {}
func (Reboot) isAction()        {}
func (Resize) isAction()        {}
func (ConfirmResize) isAction() {}
func (CreateImage) isAction()   {}

var (
	errEmptyEnvelope   = errors.New("action envelope is empty")
	errMultipleActions = errors.New("action envelope holds more than one key")
)

// ParseAction decodes an action envelope. The body must be a JSON object
// with exactly one key, and that key must name a known action.
func ParseAction(body []byte) (Action, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, NewMalformedEnvelopeError(errEmptyEnvelope)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewMalformedEnvelopeError(err)
	}
	switch len(envelope) {
	case 0:
		return nil, NewMalformedEnvelopeError(errEmptyEnvelope)
	case 1:
	default:
		return nil, NewMalformedEnvelopeError(errMultipleActions)
	}

	for key, raw := range envelope {
		action, err := parseArgs(key, raw)
		if err != nil {
			return nil, NewMalformedEnvelopeError(err)
		}
		return action, nil
	}
	return nil, NewMalformedEnvelopeError(errEmptyEnvelope)
}

func parseArgs(key string, raw json.RawMessage) (Action, error) {
	switch key {
	case ActionPowerOn:
		return PowerOn{}, nil
	case ActionPowerOff:
		return PowerOff{}, nil
	case ActionConfirmResize:
		return ConfirmResize{}, nil

	case ActionReboot:
		var args struct {
			Type string `json:"type"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return Reboot{Type: rebootType(args.Type)}, nil

	case ActionResize:
		var args struct {
			FlavorRef Ref `json:"flavorRef"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return Resize{FlavorRef: args.FlavorRef}, nil

	case ActionCreateImage:
		var args struct {
			Name     string            `json:"name"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return CreateImage{Name: args.Name, Metadata: args.Metadata}, nil

	default:
		return nil, fmt.Errorf("unrecognized action %q", key)
	}
}

// decodeArgs decodes action arguments; null arguments leave v untouched.
func decodeArgs(raw json.RawMessage, v any) error {
	if !present(raw) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func rebootType(s string) RebootType {
	switch RebootType(strings.ToUpper(s)) {
	case RebootSoft:
		return RebootSoft
	case RebootHard:
		return RebootHard
	default:
		return RebootDefault
	}
}
