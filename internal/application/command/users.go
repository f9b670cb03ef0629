package command

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER COMMANDS
// Users are staff and admin accounts. They are never deleted.
// ══════════════════════════════════════════════════════════════════════════════

// CreateUserCommand registers a platform user. An empty Password gets a
// random one, since the stored secret may never be empty.
type CreateUserCommand struct {
	Email    string `validate:"required,email,max=254"`
	FullName string `validate:"required,notblank,max=200"`
	Role     string `validate:"omitempty,max=20"`
	Password string `validate:"omitempty,min=8,max=72"`
}

// Validate checks rules the tags cannot express.
func (c CreateUserCommand) Validate() error {
	if c.Role != "" {
		if _, ok := identity.ParseRole(c.Role); !ok {
			return shared.Validationf("user", "Create", "unknown role %q", c.Role)
		}
	}
	return nil
}

// UpdateUserCommand changes profile fields. Nil fields are left alone.
type UpdateUserCommand struct {
	UserID   string  `validate:"required"`
	FullName *string `validate:"omitempty,notblank,max=200"`
	Role     *string `validate:"omitempty"`
	Password *string `validate:"omitempty,min=8,max=72"`
}

// UserHandler handles user commands.
type UserHandler struct {
	deps   Deps
	hasher identity.PasswordHasher
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(deps Deps, hasher identity.PasswordHasher) *UserHandler {
	return &UserHandler{deps: deps.withDefaults(), hasher: hasher}
}

// CreateUser stores a new user with a lower-cased email.
func (h *UserHandler) CreateUser(ctx context.Context, cmd CreateUserCommand) (*identity.User, error) {
	cmd.Email = identity.NormalizeEmail(cmd.Email)
	if err := checkStruct("user", "Create", cmd); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	secret := cmd.Password
	if secret == "" {
		var err error
		if secret, err = randomSecret(); err != nil {
			return nil, fmt.Errorf("create_user: %w", err)
		}
	}
	hash, err := h.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("create_user: hash credential: %w", err)
	}

	role, _ := identity.ParseRole(cmd.Role)
	if cmd.Role == "" {
		role = identity.RoleUser
	}
	user := identity.NewUser(identity.NewUserParams{
		Email:        cmd.Email,
		FullName:     cmd.FullName,
		Role:         role,
		PasswordHash: hash,
	})

	attempt := 0
	err = h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		if attempt++; attempt > 1 {
			user.UserID = identity.NewUserID()
		}
		return repos.Users.Create(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("create_user: %w", err)
	}

	h.deps.Logger.Info("user created", logger.UserID(user.UserID), logger.String("role", string(user.Role)))
	return user, nil
}

// UpdateUser applies the non-nil fields of cmd.
func (h *UserHandler) UpdateUser(ctx context.Context, cmd UpdateUserCommand) (*identity.User, error) {
	if err := checkStruct("user", "Update", cmd); err != nil {
		return nil, err
	}
	var role identity.Role
	if cmd.Role != nil {
		r, ok := identity.ParseRole(*cmd.Role)
		if !ok {
			return nil, shared.Validationf("user", "Update", "unknown role %q", *cmd.Role)
		}
		role = r
	}
	var hash string
	if cmd.Password != nil {
		var err error
		if hash, err = h.hasher.Hash(*cmd.Password); err != nil {
			return nil, fmt.Errorf("update_user: hash credential: %w", err)
		}
	}

	var user *identity.User
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		u, err := repos.Users.GetByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if cmd.FullName != nil {
			u.FullName = strings.TrimSpace(*cmd.FullName)
		}
		if role != "" {
			u.Role = role
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		if err := repos.Users.Update(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_user: %w", err)
	}
	return user, nil
}

// DeactivateUser flips the user to Inactive. Deactivating twice is a no-op.
func (h *UserHandler) DeactivateUser(ctx context.Context, userID string) error {
	if userID == "" {
		return shared.Validationf("user", "Deactivate", "user id is required")
	}
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		u, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !u.IsActive() {
			return nil
		}
		u.Deactivate()
		return repos.Users.Update(ctx, u)
	})
	if err != nil {
		return fmt.Errorf("deactivate_user: %w", err)
	}
	h.deps.Logger.Info("user deactivated", logger.UserID(userID))
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
