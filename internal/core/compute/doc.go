// Package compute translates between the standardized compute API and the
// provider's native object model.
//
// This package contains the functional core of the gateway. All functions
// are pure (no I/O, no side effects); anything that needs the provider takes
// the provider's answer as an argument instead.
//
// # Resolvers
//
// A create request is resolved into ProvisioningParameters by independent
// resolvers, each returning one fragment:
//
//   - flavor.Resolve: cpu, memory and disk mode from a flavor reference
//   - SelectSSHKeys: key ids from the account's keys matching a name
//   - AssembleUserData: one JSON user-data blob
//   - DatacenterResolver.Resolve: availability zone or the configured default
//   - PlanNetworks / NetworkPlan.Resolve: public and private VLAN assignment
//
// BuildParameters merges the fragments and Validate checks the result is
// complete before the shell calls the provider.
//
// # Actions
//
// ParseAction turns an action body into exactly one Action value. The shell
// switches on the concrete type to pick the provider call.
//
// # Views and errors
//
// NewInstanceView maps a guest.Guest onto the standardized InstanceView.
// Envelope maps any error onto the standardized error envelope.
package compute
