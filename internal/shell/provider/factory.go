package provider

import (
	"fmt"
	"log/slog"
	"time"

	coreprovider "github.com/artpar/novagate/internal/core/provider"
)

// Config selects and configures the vendor behind the facade.
type Config struct {
	Type            string
	APIToken        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	NetworkLabel    string

	RetryAttempts int
	RetryDelay    time.Duration
}

// NewClient builds the configured vendor client wrapped with metrics and
// retries.
func NewClient(cfg Config, logger *slog.Logger) (Client, error) {
	creds := coreprovider.Credentials{
		Type:            cfg.Type,
		APIToken:        cfg.APIToken,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Region:          cfg.Region,
	}
	if err := coreprovider.ValidateCredentials(creds); err != nil {
		return nil, fmt.Errorf("invalid %s credentials: %w", cfg.Type, err)
	}

	var client Client
	switch cfg.Type {
	case coreprovider.TypeHetzner:
		client = NewHetznerClient(cfg.APIToken, cfg.NetworkLabel, logger)
	case coreprovider.TypeDigitalOcean:
		client = NewDigitalOceanClient(cfg.APIToken, logger)
	case coreprovider.TypeAWS:
		client = NewAWSClient(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Region, logger)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}

	client = WithMetrics(client, cfg.Type)
	return WithRetry(client, cfg.RetryAttempts, cfg.RetryDelay, logger), nil
}
