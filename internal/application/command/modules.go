package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// CreateModuleCommand adds a module to a course.
type CreateModuleCommand struct {
	CourseID    string `validate:"required"`
	Title       string `validate:"required,notblank,max=200"`
	Description string `validate:"max=5000"`
	Position    int    `validate:"gte=0"`
}

// UpdateModuleCommand changes a module. Nil fields are left alone.
type UpdateModuleCommand struct {
	ModuleID    string  `validate:"required"`
	Title       *string `validate:"omitempty,notblank,max=200"`
	Description *string `validate:"omitempty,max=5000"`
	Position    *int    `validate:"omitempty,gte=0"`
}

// CreateModule stores a new unpublished module.
func (h *CatalogHandler) CreateModule(ctx context.Context, cmd CreateModuleCommand) (*catalog.Module, error) {
	if err := checkStruct("catalog", "CreateModule", cmd); err != nil {
		return nil, err
	}
	module := catalog.NewModule(cmd.CourseID, cmd.Title, cmd.Description, cmd.Position)
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		if _, err := repos.Courses.GetByID(ctx, cmd.CourseID); err != nil {
			return err
		}
		return repos.Modules.Create(ctx, module)
	})
	if err != nil {
		return nil, fmt.Errorf("create_module: %w", err)
	}
	h.courseChanged(module.CourseID)
	return module, nil
}

// UpdateModule applies the non-nil fields of cmd. Sibling positions are not
// touched.
func (h *CatalogHandler) UpdateModule(ctx context.Context, cmd UpdateModuleCommand) (*catalog.Module, error) {
	if err := checkStruct("catalog", "UpdateModule", cmd); err != nil {
		return nil, err
	}
	return h.mutateModule(ctx, "update_module", cmd.ModuleID, func(m *catalog.Module) {
		if cmd.Title != nil {
			m.Title = strings.TrimSpace(*cmd.Title)
		}
		if cmd.Description != nil {
			m.Description = *cmd.Description
		}
		if cmd.Position != nil {
			m.Position = *cmd.Position
		}
	})
}

// SetModulePublished flips the publish flag. Lessons keep their own flags.
func (h *CatalogHandler) SetModulePublished(ctx context.Context, moduleID string, published bool) (*catalog.Module, error) {
	if moduleID == "" {
		return nil, shared.Validationf("catalog", "PublishModule", "module id is required")
	}
	return h.mutateModule(ctx, "publish_module", moduleID, func(m *catalog.Module) {
		m.IsPublished = published
	})
}

// DeleteModule removes the module and its lessons.
func (h *CatalogHandler) DeleteModule(ctx context.Context, moduleID string) error {
	if moduleID == "" {
		return shared.Validationf("catalog", "DeleteModule", "module id is required")
	}
	var courseID string
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		m, err := repos.Modules.GetByID(ctx, moduleID)
		if err != nil {
			return err
		}
		courseID = m.CourseID
		return repos.Modules.Delete(ctx, moduleID)
	})
	if err != nil {
		return fmt.Errorf("delete_module: %w", err)
	}
	h.courseChanged(courseID)
	return nil
}

func (h *CatalogHandler) mutateModule(ctx context.Context, op, moduleID string, apply func(*catalog.Module)) (*catalog.Module, error) {
	var module *catalog.Module
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		m, err := repos.Modules.GetByID(ctx, moduleID)
		if err != nil {
			return err
		}
		apply(m)
		if err := repos.Modules.Update(ctx, m); err != nil {
			return err
		}
		module = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	h.courseChanged(module.CourseID)
	return module, nil
}
