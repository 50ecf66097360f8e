package entity

type Capability string

const (
	CapabilityInventory   Capability = "inventory"
	CapabilityOrders      Capability = "orders"
	CapabilityChatSupport Capability = "chat_support"
)

var Capabilities = []Capability{CapabilityInventory, CapabilityOrders, CapabilityChatSupport}

func (c Capability) Valid() bool {
	switch c {
	case CapabilityInventory, CapabilityOrders, CapabilityChatSupport:
		return true
	}
	return false
}

// Column returns the users column backing the flag.
func (c Capability) Column() string {
	return "can_access_" + string(c)
}
