package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/learnforge/lms-ledger/internal/application/ledger"
	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentCommand registers a student. Omitted KYC fields and status
// get their defaults.
type CreateStudentCommand struct {
	FirstName            string     `validate:"required,notblank,max=100"`
	LastName             string     `validate:"max=100"`
	Email                string     `validate:"required,email,max=254"`
	MobileNumber         string     `validate:"required,notblank,max=20"`
	DateOfBirth          *time.Time `validate:"omitempty"`
	Gender               string     `validate:"max=20"`
	ProfilePhotoURL      string     `validate:"omitempty,url"`
	EmergencyContact     string     `validate:"max=20"`
	ResidentialAddress   string
	CurrentStatus        string `validate:"omitempty"`
	HighestQualification string `validate:"max=100"`
	IDProofType          string `validate:"max=50"`
	IDNumber             string `validate:"max=50"`
	LeadSource           string `validate:"max=100"`
}

// Validate checks rules the tags cannot express.
func (c CreateStudentCommand) Validate() error {
	if c.CurrentStatus != "" && !identity.StudentStatus(c.CurrentStatus).IsValid() {
		return shared.Validationf("student", "Create", "unknown current status %q", c.CurrentStatus)
	}
	if c.DateOfBirth != nil && c.DateOfBirth.After(time.Now()) {
		return shared.Validationf("student", "Create", "date of birth is in the future")
	}
	return nil
}

// UpdateStudentCommand changes profile fields. Nil fields are left alone.
type UpdateStudentCommand struct {
	StudentID            string     `validate:"required"`
	FirstName            *string    `validate:"omitempty,notblank,max=100"`
	LastName             *string    `validate:"omitempty,max=100"`
	Email                *string    `validate:"omitempty,email,max=254"`
	MobileNumber         *string    `validate:"omitempty,notblank,max=20"`
	DateOfBirth          *time.Time `validate:"omitempty"`
	Gender               *string    `validate:"omitempty,max=20"`
	ProfilePhotoURL      *string    `validate:"omitempty,url"`
	EmergencyContact     *string    `validate:"omitempty,max=20"`
	ResidentialAddress   *string
	CurrentStatus        *string `validate:"omitempty"`
	HighestQualification *string `validate:"omitempty,max=100"`
	IDProofType          *string `validate:"omitempty,max=50"`
	IDNumber             *string `validate:"omitempty,max=50"`
	LeadSource           *string `validate:"omitempty,max=100"`
}

// DeleteStudentResult reports what the delete released.
type DeleteStudentResult struct {
	StudentID          string
	EnrollmentsRemoved int
	SeatChanges        []ledger.SeatChange
}

// StudentHandler handles student commands.
type StudentHandler struct {
	deps Deps
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(deps Deps) *StudentHandler {
	return &StudentHandler{deps: deps.withDefaults()}
}

// CreateStudent stores a new student with a lower-cased email.
func (h *StudentHandler) CreateStudent(ctx context.Context, cmd CreateStudentCommand) (*identity.Student, error) {
	cmd.Email = identity.NormalizeEmail(cmd.Email)
	if err := checkStruct("student", "Create", cmd); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	student := identity.NewStudent(identity.NewStudentParams{
		FirstName:            cmd.FirstName,
		LastName:             cmd.LastName,
		Email:                cmd.Email,
		MobileNumber:         cmd.MobileNumber,
		DateOfBirth:          cmd.DateOfBirth,
		Gender:               cmd.Gender,
		ProfilePhotoURL:      cmd.ProfilePhotoURL,
		EmergencyContact:     cmd.EmergencyContact,
		ResidentialAddress:   cmd.ResidentialAddress,
		CurrentStatus:        identity.StudentStatus(cmd.CurrentStatus),
		HighestQualification: cmd.HighestQualification,
		IDProofType:          cmd.IDProofType,
		IDNumber:             cmd.IDNumber,
		LeadSource:           cmd.LeadSource,
	})

	attempt := 0
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		if attempt++; attempt > 1 {
			student.StudentID = identity.NewStudentID()
		}
		return repos.Students.Create(ctx, student)
	})
	if err != nil {
		return nil, fmt.Errorf("create_student: %w", err)
	}

	h.deps.Logger.Info("student created", logger.StudentID(student.StudentID))
	return student, nil
}

// UpdateStudent applies the non-nil fields of cmd.
func (h *StudentHandler) UpdateStudent(ctx context.Context, cmd UpdateStudentCommand) (*identity.Student, error) {
	if cmd.Email != nil {
		e := identity.NormalizeEmail(*cmd.Email)
		cmd.Email = &e
	}
	if err := checkStruct("student", "Update", cmd); err != nil {
		return nil, err
	}
	if cmd.CurrentStatus != nil && !identity.StudentStatus(*cmd.CurrentStatus).IsValid() {
		return nil, shared.Validationf("student", "Update", "unknown current status %q", *cmd.CurrentStatus)
	}

	var student *identity.Student
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		s, err := repos.Students.GetByID(ctx, cmd.StudentID)
		if err != nil {
			return err
		}
		applyStudentUpdate(s, cmd)
		if err := repos.Students.Update(ctx, s); err != nil {
			return err
		}
		student = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_student: %w", err)
	}
	return student, nil
}

func applyStudentUpdate(s *identity.Student, cmd UpdateStudentCommand) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&s.FirstName, cmd.FirstName)
	set(&s.LastName, cmd.LastName)
	set(&s.Email, cmd.Email)
	set(&s.MobileNumber, cmd.MobileNumber)
	set(&s.Gender, cmd.Gender)
	set(&s.ProfilePhotoURL, cmd.ProfilePhotoURL)
	set(&s.EmergencyContact, cmd.EmergencyContact)
	set(&s.ResidentialAddress, cmd.ResidentialAddress)
	set(&s.HighestQualification, cmd.HighestQualification)
	set(&s.IDProofType, cmd.IDProofType)
	set(&s.IDNumber, cmd.IDNumber)
	set(&s.LeadSource, cmd.LeadSource)
	if cmd.CurrentStatus != nil {
		s.CurrentStatus = identity.StudentStatus(*cmd.CurrentStatus)
	}
	if cmd.DateOfBirth != nil {
		d := *cmd.DateOfBirth
		s.DateOfBirth = &d
	}
}

// DeleteStudent removes the student. Every enrollment of the student goes
// through the ledger first, so the seat counts of the affected batches drop
// in the same transaction.
func (h *StudentHandler) DeleteStudent(ctx context.Context, studentID string) (*DeleteStudentResult, error) {
	if studentID == "" {
		return nil, shared.Validationf("student", "Delete", "student id is required")
	}

	var (
		result *DeleteStudentResult
		lt     *ledger.Tx
	)
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		lt = ledger.Bind(repos)
		// The student lock keeps a concurrent Enroll from slipping a row in
		// between the listing and the cascade.
		if _, err := repos.Students.GetForUpdate(ctx, studentID); err != nil {
			return err
		}
		enrollments, err := repos.Enrollments.ListByStudent(ctx, studentID)
		if err != nil {
			return err
		}
		for _, e := range enrollments {
			if err := lt.Delete(ctx, e); err != nil {
				return fmt.Errorf("release enrollment %s: %w", e.ID, err)
			}
		}
		if err := repos.Students.Delete(ctx, studentID); err != nil {
			return err
		}
		result = &DeleteStudentResult{
			StudentID:          studentID,
			EnrollmentsRemoved: len(enrollments),
			SeatChanges:        lt.SeatChanges(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete_student: %w", err)
	}

	h.deps.publish(lt.Events()...)
	h.deps.publish(shared.NewAggregateChangedEvent(shared.EventStudentDeleted, studentID, ""))
	h.deps.Logger.Info("student deleted",
		logger.StudentID(studentID),
		logger.Int("enrollments_removed", result.EnrollmentsRemoved),
	)
	return result, nil
}
