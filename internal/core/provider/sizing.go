// Package provider contains pure functions for vendor catalog lookups and
// credential checks. This is part of the Functional Core - all functions are
// pure with no I/O.
package provider

import "sort"

// Supported provider types.
const (
	TypeHetzner      = "hetzner"
	TypeDigitalOcean = "digitalocean"
	TypeAWS          = "aws"
)

// Region is a vendor location that can back an availability zone.
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InstanceSize is a vendor machine type.
type InstanceSize struct {
	ID       string `json:"id"`
	CPUCores int    `json:"cpu_cores"`
	MemoryMB int    `json:"memory_mb"`
	DiskGB   int    `json:"disk_gb"`
}

// =============================================================================
// Catalogs
// =============================================================================

var regions = map[string][]Region{
	TypeHetzner: {
		{ID: "nbg1", Name: "Nuremberg"},
		{ID: "fsn1", Name: "Falkenstein"},
		{ID: "hel1", Name: "Helsinki"},
		{ID: "ash", Name: "Ashburn, VA"},
		{ID: "hil", Name: "Hillsboro, OR"},
	},
	TypeDigitalOcean: {
		{ID: "nyc1", Name: "New York 1"},
		{ID: "nyc3", Name: "New York 3"},
		{ID: "sfo3", Name: "San Francisco 3"},
		{ID: "ams3", Name: "Amsterdam 3"},
		{ID: "lon1", Name: "London 1"},
		{ID: "fra1", Name: "Frankfurt 1"},
		{ID: "sgp1", Name: "Singapore 1"},
	},
	TypeAWS: {
		{ID: "us-east-1a", Name: "US East (N. Virginia) a"},
		{ID: "us-east-1b", Name: "US East (N. Virginia) b"},
		{ID: "us-west-2a", Name: "US West (Oregon) a"},
		{ID: "eu-west-1a", Name: "EU (Ireland) a"},
		{ID: "eu-central-1a", Name: "EU (Frankfurt) a"},
	},
}

// Sizes are listed smallest first.
var sizes = map[string][]InstanceSize{
	TypeHetzner: {
		{ID: "cx22", CPUCores: 2, MemoryMB: 4096, DiskGB: 40},
		{ID: "cx32", CPUCores: 4, MemoryMB: 8192, DiskGB: 80},
		{ID: "cx42", CPUCores: 8, MemoryMB: 16384, DiskGB: 160},
		{ID: "cx52", CPUCores: 16, MemoryMB: 32768, DiskGB: 320},
	},
	TypeDigitalOcean: {
		{ID: "s-1vcpu-1gb", CPUCores: 1, MemoryMB: 1024, DiskGB: 25},
		{ID: "s-1vcpu-2gb", CPUCores: 1, MemoryMB: 2048, DiskGB: 50},
		{ID: "s-2vcpu-4gb", CPUCores: 2, MemoryMB: 4096, DiskGB: 80},
		{ID: "s-4vcpu-8gb", CPUCores: 4, MemoryMB: 8192, DiskGB: 160},
	},
	TypeAWS: {
		{ID: "t3.micro", CPUCores: 2, MemoryMB: 1024, DiskGB: 8},
		{ID: "t3.small", CPUCores: 2, MemoryMB: 2048, DiskGB: 20},
		{ID: "t3.medium", CPUCores: 2, MemoryMB: 4096, DiskGB: 40},
		{ID: "t3.large", CPUCores: 2, MemoryMB: 8192, DiskGB: 80},
		{ID: "t3.xlarge", CPUCores: 4, MemoryMB: 16384, DiskGB: 160},
	},
}

// =============================================================================
// Catalog Lookup
// =============================================================================

// StaticRegions returns the region catalog for a provider.
func StaticRegions(provider string) []Region {
	return append([]Region(nil), regions[provider]...)
}

// LookupRegion returns a region by id.
func LookupRegion(provider, id string) (Region, bool) {
	for _, r := range regions[provider] {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

// StaticSizes returns the size catalog for a provider, smallest first.
func StaticSizes(provider string) []InstanceSize {
	out := append([]InstanceSize(nil), sizes[provider]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CPUCores != out[j].CPUCores {
			return out[i].CPUCores < out[j].CPUCores
		}
		return out[i].MemoryMB < out[j].MemoryMB
	})
	return out
}

// LookupSize returns the size with the given id.
func LookupSize(provider, id string) (InstanceSize, bool) {
	for _, s := range sizes[provider] {
		if s.ID == id {
			return s, true
		}
	}
	return InstanceSize{}, false
}

// MatchSize picks the smallest vendor size with at least the requested cpus
// and memory. Disk is not considered: vendor root disks are fixed per size.
func MatchSize(provider string, cpus, memoryMB int) (InstanceSize, bool) {
	for _, s := range StaticSizes(provider) {
		if s.CPUCores >= cpus && s.MemoryMB >= memoryMB {
			return s, true
		}
	}
	return InstanceSize{}, false
}
