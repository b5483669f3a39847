package api

import corecompute "github.com/artpar/novagate/internal/core/compute"

// =============================================================================
// Response Types
// =============================================================================

// ServerResponse wraps a single server.
type ServerResponse struct {
	Server corecompute.InstanceView `json:"server"`
}

// ServerListResponse is the short server listing.
type ServerListResponse struct {
	Servers []corecompute.ServerSummary `json:"servers"`
}

// ServerDetailListResponse is the detailed server listing.
type ServerDetailListResponse struct {
	Servers []corecompute.InstanceView `json:"servers"`
}

// FlavorSummary is one entry of the short flavor listing.
type FlavorSummary struct {
	ID    string             `json:"id"`
	Name  string             `json:"name"`
	Links []corecompute.Link `json:"links"`
}

// FlavorListResponse is the short flavor listing.
type FlavorListResponse struct {
	Flavors []FlavorSummary `json:"flavors"`
}

// FlavorDetailListResponse is the detailed flavor listing.
type FlavorDetailListResponse struct {
	Flavors []corecompute.FlavorView `json:"flavors"`
}

// FlavorResponse wraps a single flavor.
type FlavorResponse struct {
	Flavor corecompute.FlavorView `json:"flavor"`
}

// ExtensionListResponse lists the advertised API extensions.
type ExtensionListResponse struct {
	Extensions []Extension `json:"extensions"`
}

// ExtensionResponse wraps a single extension.
type ExtensionResponse struct {
	Extension Extension `json:"extension"`
}

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ReadyResponse is the response for the readiness check endpoint.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// =============================================================================
// Request Types
// =============================================================================

// ActionEnvelope documents the action body: exactly one key is set.
type ActionEnvelope struct {
	OSStart       *struct{}           `json:"os-start,omitempty"`
	OSStop        *struct{}           `json:"os-stop,omitempty"`
	Reboot        *RebootRequest      `json:"reboot,omitempty"`
	Resize        *ResizeRequest      `json:"resize,omitempty"`
	ConfirmResize *struct{}           `json:"confirmResize,omitempty"`
	CreateImage   *CreateImageRequest `json:"createImage,omitempty"`
}

// RebootRequest is the reboot action argument.
type RebootRequest struct {
	Type string `json:"type"`
}

// ResizeRequest is the resize action argument.
type ResizeRequest struct {
	FlavorRef string `json:"flavorRef"`
}

// CreateImageRequest is the createImage action argument.
type CreateImageRequest struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
