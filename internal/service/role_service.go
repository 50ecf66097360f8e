package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"sims/internal/entity"
	"sims/internal/repository"
	"sims/internal/utils"

	"github.com/sirupsen/logrus"
)

// RoleService holds the Super Admin operations over roles, capability flags and account status.
type RoleService struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	tx     repository.Transactor
	audit  auditTrail
	logger logrus.FieldLogger
}

func NewRoleService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	tx repository.Transactor,
	securityLogs repository.SecurityLogRepository,
	logger logrus.FieldLogger,
) *RoleService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RoleService{
		users:  users,
		roles:  roles,
		tx:     tx,
		audit:  auditTrail{logs: securityLogs, logger: logger},
		logger: logger,
	}
}

// AssignRole links roleName to the user, creating the role if needed. Admin and Employee
// also switch every capability flag on.
func (s *RoleService) AssignRole(ctx context.Context, actor Actor, userID int64, roleName string, ipAddress *string) ([]string, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	roleName, err := cleanRoleName(roleName)
	if err != nil {
		return nil, err
	}
	user, err := s.targetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		role, err := s.roles.EnsureRole(ctx, roleName)
		if err != nil {
			return err
		}
		if err := s.roles.Link(ctx, user.ID, role.ID); err != nil {
			return err
		}
		if grantsAllCapabilities(roleName) {
			return s.users.GrantAllCapabilities(ctx, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.syncRoleLabel(ctx, user.ID, roles)
	s.audit.record(ctx, &user.ID, ipAddress, entity.RoleAssigned, map[string]any{
		"role":     roleName,
		"actor_id": actor.UserID,
	})
	return roles, nil
}

// RemoveRole unlinks roleName and recomputes the display label. A user's last role cannot be
// removed. Capability flags are left as they are.
func (s *RoleService) RemoveRole(ctx context.Context, actor Actor, userID int64, roleName string, ipAddress *string) ([]string, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	roleName, err := cleanRoleName(roleName)
	if err != nil {
		return nil, err
	}
	user, err := s.targetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	var roles []string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		removed, err := s.roles.Unlink(ctx, user.ID, role.ID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrRoleNotAssigned
		}
		if roles, err = s.roles.RolesForUser(ctx, user.ID); err != nil {
			return err
		}
		if len(roles) == 0 {
			return ErrLastRole
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.syncRoleLabel(ctx, user.ID, roles)
	s.audit.record(ctx, &user.ID, ipAddress, entity.RoleRemoved, map[string]any{
		"role":     roleName,
		"actor_id": actor.UserID,
	})
	return roles, nil
}

func (s *RoleService) SetCapability(
	ctx context.Context,
	actor Actor,
	userID int64,
	capability entity.Capability,
	enabled bool,
	ipAddress *string,
) error {
	if err := requireSuperAdmin(actor); err != nil {
		return err
	}
	if !capability.Valid() {
		return newValidationError("Unknown capability")
	}
	user, err := s.targetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.SetCapability(ctx, user.ID, capability, enabled); err != nil {
		return err
	}
	s.audit.record(ctx, &user.ID, ipAddress, entity.CapabilityUpdated, map[string]any{
		"capability": capability,
		"enabled":    enabled,
		"actor_id":   actor.UserID,
	})
	return nil
}

// SetActive activates or deactivates an account. Super Admin accounts cannot be deactivated.
func (s *RoleService) SetActive(ctx context.Context, actor Actor, userID int64, active bool, ipAddress *string) error {
	if err := requireSuperAdmin(actor); err != nil {
		return err
	}
	user, err := s.targetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !active {
		roles, err := s.roles.RolesForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if HasRole(roles, entity.RoleSuperAdmin) {
			return ErrProtectedAccount
		}
	}
	if err := s.users.SetActive(ctx, user.ID, active); err != nil {
		return err
	}
	s.audit.record(ctx, &user.ID, ipAddress, entity.AccountStatusChanged, map[string]any{
		"active":   active,
		"actor_id": actor.UserID,
	})
	return nil
}

func (s *RoleService) ListUsers(ctx context.Context, actor Actor, limit, offset int) ([]entity.User, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.List(ctx, limit, offset)
}

type BootstrapAdminInput struct {
	Username string
	Email    string
	Password string
}

// BootstrapSuperAdmin creates a Super Admin account, or promotes and reactivates the account
// already holding that email or username. The password is only used when creating.
func (s *RoleService) BootstrapSuperAdmin(
	ctx context.Context,
	input BootstrapAdminInput,
	passwords PasswordHasher,
	policy PasswordPolicy,
) (*entity.User, error) {
	username := strings.TrimSpace(input.Username)
	email := utils.NormalizeEmail(input.Email)
	if username == "" || email == "" {
		return nil, newValidationError("Username and email are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = s.users.FindByIdentifier(ctx, username); err != nil {
			return nil, err
		}
	}
	if user == nil {
		if err := policy.Validate(input.Password, username, email); err != nil {
			return nil, err
		}
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if user == nil {
			hash, err := passwords.Hash(input.Password)
			if err != nil {
				return err
			}
			user = &entity.User{
				Username:             username,
				Email:                email,
				PasswordHash:         hash,
				FirstName:            "Super",
				LastName:             "Admin",
				Role:                 entity.RoleSuperAdmin,
				IsActive:             true,
				CanAccessInventory:   boolPtr(true),
				CanAccessOrders:      boolPtr(true),
				CanAccessChatSupport: boolPtr(true),
			}
			if err := s.users.Create(ctx, user); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return ErrAccountExists
				}
				return err
			}
		} else if !user.IsActive {
			if err := s.users.SetActive(ctx, user.ID, true); err != nil {
				return err
			}
			user.IsActive = true
		}
		role, err := s.roles.EnsureRole(ctx, entity.RoleSuperAdmin)
		if err != nil {
			return err
		}
		if err := s.roles.Link(ctx, user.ID, role.ID); err != nil {
			return err
		}
		return s.users.GrantAllCapabilities(ctx, user.ID)
	})
	if err != nil {
		return nil, err
	}

	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.syncRoleLabel(ctx, user.ID, roles)
	s.audit.record(ctx, &user.ID, nil, entity.RoleAssigned, map[string]any{
		"role":   entity.RoleSuperAdmin,
		"source": "bootstrap",
	})
	return user, nil
}

func (s *RoleService) targetUser(ctx context.Context, userID int64) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// syncRoleLabel refreshes the users.role display column. It is a cache and may lag.
func (s *RoleService) syncRoleLabel(ctx context.Context, userID int64, roles []string) {
	if err := s.users.UpdateRoleLabel(ctx, userID, PrimaryRole(roles)); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("role label sync failed")
	}
}

func requireSuperAdmin(actor Actor) error {
	if !HasRole(actor.Roles, entity.RoleSuperAdmin) {
		return ErrSuperAdminRequired
	}
	return nil
}

func cleanRoleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newValidationError("Role is required")
	}
	if utf8.RuneCountInString(name) > 50 || utils.ContainsEmoji(name) {
		return "", newValidationError("Role name is invalid")
	}
	return name, nil
}
