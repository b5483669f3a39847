package provider

import (
	"errors"
	"fmt"
)

// =============================================================================
// Credential Validation (Pure - no I/O)
// =============================================================================

var (
	ErrAWSAccessKeyRequired = errors.New("AWS access key ID is required")
	ErrAWSSecretKeyRequired = errors.New("AWS secret access key is required")
	ErrAWSRegionRequired    = errors.New("AWS region is required")
	ErrDOTokenRequired      = errors.New("DigitalOcean API token is required")
	ErrHetznerTokenRequired = errors.New("Hetzner API token is required")
	ErrUnknownProvider      = errors.New("unknown provider type")
)

// Credentials are the account settings a facade client is built from.
type Credentials struct {
	Type            string
	APIToken        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// ValidateCredentials checks the fields the given provider type needs.
func ValidateCredentials(creds Credentials) error {
	switch creds.Type {
	case TypeAWS:
		if creds.AccessKeyID == "" {
			return ErrAWSAccessKeyRequired
		}
		if creds.SecretAccessKey == "" {
			return ErrAWSSecretKeyRequired
		}
		if creds.Region == "" {
			return ErrAWSRegionRequired
		}
	case TypeDigitalOcean:
		if creds.APIToken == "" {
			return ErrDOTokenRequired
		}
	case TypeHetzner:
		if creds.APIToken == "" {
			return ErrHetznerTokenRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, creds.Type)
	}
	return nil
}
