package service

import (
	"sims/internal/entity"
)

var rolePriority = []string{
	entity.RoleSuperAdmin,
	entity.RoleAdmin,
	entity.RoleEmployee,
	entity.RoleClient,
}

type Capabilities struct {
	Inventory   bool
	Orders      bool
	ChatSupport bool
	FullAccess  bool
}

func (c Capabilities) Allows(capability entity.Capability) bool {
	if c.FullAccess {
		return true
	}
	switch capability {
	case entity.CapabilityInventory:
		return c.Inventory
	case entity.CapabilityOrders:
		return c.Orders
	case entity.CapabilityChatSupport:
		return c.ChatSupport
	}
	return false
}

// PermissionResolver reads capability flags from the user row. Super Admin overrides every flag.
type PermissionResolver struct{}

func (PermissionResolver) Resolve(user *entity.User, roles []string) Capabilities {
	if user == nil {
		return Capabilities{}
	}
	if HasRole(roles, entity.RoleSuperAdmin) {
		return Capabilities{Inventory: true, Orders: true, ChatSupport: true, FullAccess: true}
	}
	return Capabilities{
		Inventory:   flagAllowed(user.CanAccessInventory),
		Orders:      flagAllowed(user.CanAccessOrders),
		ChatSupport: flagAllowed(user.CanAccessChatSupport),
	}
}

// flagAllowed treats a missing value as allowed; only legacy rows lack one.
func flagAllowed(flag *bool) bool {
	if flag == nil {
		return true
	}
	return *flag
}

func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrimaryRole picks the display label: Super Admin > Admin > Employee > Client, then any custom role.
func PrimaryRole(roles []string) string {
	for _, candidate := range rolePriority {
		if HasRole(roles, candidate) {
			return candidate
		}
	}
	if len(roles) > 0 {
		return roles[0]
	}
	return entity.RoleClient
}

func grantsAllCapabilities(role string) bool {
	return role == entity.RoleAdmin || role == entity.RoleEmployee
}

func boolPtr(value bool) *bool {
	return &value
}
