// Package guest defines the provider's native virtual guest records.
//
// These are the shapes the Provider Client Facade returns: a guest with its
// joined status, power state, datacenter, billing and transaction
// sub-records. Facade adapters fill them in from their SDK objects; the
// compute translator turns them into standardized views.
package guest

import "time"

// Status key names reported by the provider.
const (
	StatusActive       = "ACTIVE"
	StatusDisconnected = "DISCONNECTED"
	StatusDeactive     = "DEACTIVE"
)

// Power state key names reported by the provider.
const (
	PowerRunning   = "RUNNING"
	PowerHalted    = "HALTED"
	PowerPaused    = "PAUSED"
	PowerSuspended = "SUSPENDED"
)

// Transaction names for in-flight provider work.
const (
	TransactionProvision = "PROVISION"
	TransactionReboot    = "REBOOT"
	TransactionResize    = "RESIZE"
	TransactionReload    = "RELOAD"
	TransactionMigrate   = "MIGRATE"
	TransactionCapture   = "CAPTURE"
)

// Guest is the provider's native instance record.
type Guest struct {
	ID                       string
	GlobalIdentifier         string
	Hostname                 string
	Domain                   string
	FullyQualifiedDomainName string
	AccountID                string

	StartCPUs int
	MaxMemory int // MB
	DiskGB    int
	LocalDisk bool

	CreateDate time.Time
	ModifyDate time.Time

	PrimaryIPAddress        string
	PrimaryBackendIPAddress string
	PrimaryIPv6Address      string

	ImageName      string
	SecurityGroups []string

	Status            *Status
	PowerState        *PowerState
	Datacenter        *Datacenter
	BillingItem       *BillingItem
	ActiveTransaction *Transaction
	BlockDevices      []BlockDevice
}

// Status is the provider's lifecycle status sub-record.
type Status struct {
	KeyName string
	Name    string
}

// PowerState is the provider's power state sub-record.
type PowerState struct {
	KeyName string
	Name    string
}

// Datacenter is the provider location an instance runs in.
type Datacenter struct {
	ID       string
	Name     string
	LongName string
}

// BillingItem joins an instance to the order that created it.
type BillingItem struct {
	OrderItem *OrderItem
}

// OrderItem is a single line of a provider order.
type OrderItem struct {
	Order *Order
}

// Order records who placed it.
type Order struct {
	UserRecordID string
}

// Transaction is work the provider is currently running on an instance.
type Transaction struct {
	Name string
}

// BlockDevice is a disk attached to an instance.
type BlockDevice struct {
	ID     string
	Device string
	SizeGB int
}

// SSHKey is a public key registered with the provider account.
type SSHKey struct {
	ID          string
	Label       string
	Fingerprint string
}

// UserRecordID returns the id of the user that ordered the instance, if known.
func (g Guest) UserRecordID() string {
	if g.BillingItem == nil || g.BillingItem.OrderItem == nil || g.BillingItem.OrderItem.Order == nil {
		return ""
	}
	return g.BillingItem.OrderItem.Order.UserRecordID
}

// StatusKey returns the status key name or an empty string.
func (g Guest) StatusKey() string {
	if g.Status == nil {
		return ""
	}
	return g.Status.KeyName
}

// PowerKey returns the power state key name or an empty string.
func (g Guest) PowerKey() string {
	if g.PowerState == nil {
		return ""
	}
	return g.PowerState.KeyName
}

// TransactionName returns the active transaction name or an empty string.
func (g Guest) TransactionName() string {
	if g.ActiveTransaction == nil {
		return ""
	}
	return g.ActiveTransaction.Name
}
