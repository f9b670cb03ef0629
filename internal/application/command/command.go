// Package command contains the write side of the ledger. Every operation
// validates its input before touching storage, runs inside one store
// transaction and publishes its events only after that transaction commits.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// Flags answers feature-flag questions. *config.FeatureFlags satisfies it.
type Flags interface {
	IsEnabled(name string) bool
}

// Flag names read by command handlers.
const (
	flagEnforceCapacity = "enrollment.enforce_capacity"
	flagOpenBatchesOnly = "enrollment.open_batches_only"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	Store     store.Store
	Publisher shared.EventPublisher
	Flags     Flags
	Logger    *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Flags == nil {
		d.Flags = defaultFlags{}
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	return d
}

// defaultFlags turns every enrollment guard on.
type defaultFlags struct{}

func (defaultFlags) IsEnabled(string) bool { return true }

// publish hands committed events to the publisher. Failures are logged and
// never undo the write.
func (d Deps) publish(events ...shared.Event) {
	for _, ev := range events {
		if err := d.Publisher.Publish(ev); err != nil {
			d.Logger.Warn("event publish failed",
				logger.String("event_type", string(ev.EventType())),
				logger.String("aggregate_id", ev.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INPUT VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// checkStruct runs the struct tags of cmd and converts failures into a
// validation DomainError for domain/op.
func checkStruct(domain, op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError(domain, op, shared.ErrValidation, "invalid input", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return shared.Validationf(domain, op, "%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "url":
		return field + " must be a URL"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
