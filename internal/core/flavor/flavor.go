// Package flavor holds the fixed flavor catalog served by the gateway.
// This is part of the Functional Core - all functions are pure with no I/O.
package flavor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// DiskMode describes where an instance's root disk lives.
type DiskMode string

const (
	// DiskModeLocal places the root disk on the hypervisor's local storage.
	DiskModeLocal DiskMode = "local"
)

// ErrUnknownFlavor is returned when a flavor reference is not in the catalog.
var ErrUnknownFlavor = errors.New("unknown flavor")

// Flavor is a named compute size tier.
type Flavor struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	CPUs     int      `json:"vcpus"`
	MemoryMB int      `json:"ram"`
	DiskGB   int      `json:"disk"`
	DiskMode DiskMode `json:"-"`
}

// LocalDisk reports whether the flavor uses local disk.
func (f Flavor) LocalDisk() bool {
	return f.DiskMode == DiskModeLocal
}

var catalog = map[string]Flavor{
	"1": {ID: "1", Name: "1 vCPU, 1GB ram, 25GB", CPUs: 1, MemoryMB: 1024, DiskGB: 25, DiskMode: DiskModeLocal},
	"2": {ID: "2", Name: "1 vCPU, 1GB ram, 100GB", CPUs: 1, MemoryMB: 1024, DiskGB: 100, DiskMode: DiskModeLocal},
	"3": {ID: "3", Name: "1 vCPU, 2GB ram, 25GB", CPUs: 1, MemoryMB: 2048, DiskGB: 25, DiskMode: DiskModeLocal},
	"4": {ID: "4", Name: "1 vCPU, 2GB ram, 100GB", CPUs: 1, MemoryMB: 2048, DiskGB: 100, DiskMode: DiskModeLocal},
	"5": {ID: "5", Name: "2 vCPU, 4GB ram, 25GB", CPUs: 2, MemoryMB: 4096, DiskGB: 25, DiskMode: DiskModeLocal},
	"6": {ID: "6", Name: "2 vCPU, 4GB ram, 100GB", CPUs: 2, MemoryMB: 4096, DiskGB: 100, DiskMode: DiskModeLocal},
	"7": {ID: "7", Name: "4 vCPU, 8GB ram, 25GB", CPUs: 4, MemoryMB: 8192, DiskGB: 25, DiskMode: DiskModeLocal},
	"8": {ID: "8", Name: "4 vCPU, 8GB ram, 100GB", CPUs: 4, MemoryMB: 8192, DiskGB: 100, DiskMode: DiskModeLocal},
}

// Resolve looks up a flavor reference in the catalog.
func Resolve(ref string) (Flavor, error) {
	f, ok := catalog[ref]
	if !ok {
		return Flavor{}, fmt.Errorf("%w: %q", ErrUnknownFlavor, ref)
	}
	return f, nil
}

// All returns every catalog flavor ordered by numeric id.
func All() []Flavor {
	out := make([]Flavor, 0, len(catalog))
	for _, f := range catalog {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out
}

// Match finds the flavor describing an instance with the given shape.
// A zero diskGB matches the first flavor with the right cpu and memory.
func Match(cpus, memoryMB, diskGB int) (Flavor, bool) {
	for _, f := range All() {
		if f.CPUs != cpus || f.MemoryMB != memoryMB {
			continue
		}
		if diskGB == 0 || f.DiskGB == diskGB {
			return f, true
		}
	}
	return Flavor{}, false
}
