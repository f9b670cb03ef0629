package enrollment

import (
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want Progress
		err  bool
	}{
		{"zero", 0, 0, false},
		{"full", 100, MaxProgress, false},
		{"two decimals", 42.5, 4250, false},
		{"rounds to hundredths", 99.999, MaxProgress, false},
		{"negative", -0.01, 0, true},
		{"over full", 150, 0, true},
		{"just over full", 100.001, 0, true},
		{"nan", math.NaN(), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProgress(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, shared.ErrOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProgress_Format(t *testing.T) {
	assert.Equal(t, "100.00", MaxProgress.String())
	assert.Equal(t, "42.05", Progress(4205).String())
	assert.Equal(t, "0.00", Progress(0).String())
	assert.InDelta(t, 42.05, Progress(4205).Percent(), 1e-9)
	assert.True(t, MaxProgress.IsComplete())
	assert.False(t, Progress(9999).IsComplete())
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusActive.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusActive.CanTransitionTo(StatusDropped))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusActive))
	assert.False(t, StatusDropped.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusActive.CanTransitionTo(StatusActive))

	assert.True(t, StatusActive.HoldsSeat())
	assert.False(t, StatusCompleted.HoldsSeat())
	assert.False(t, StatusDropped.HoldsSeat())
	assert.False(t, Status("paused").IsValid())
}

func TestNew(t *testing.T) {
	start := time.Date(2025, 3, 10, 15, 30, 0, 0, time.FixedZone("X", 5*3600))
	e := New("STU1", "course-1", "batch-1", start)

	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, Progress(0), e.Progress)
	assert.Nil(t, e.CompletionDate)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), e.StartDate)
	assert.Equal(t, 0, e.EnrollmentDate.Hour())
	assert.NotEmpty(t, e.ID)
	assert.Regexp(t, regexp.MustCompile(`^ENR-\d{8}-[0-9A-F]{8}$`), e.Number)
}

func TestNewNumber_Unique(t *testing.T) {
	at := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		n := NewNumber(at)
		assert.Equal(t, "ENR-20250102-", n[:13])
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
}

func TestEnrollment_Close(t *testing.T) {
	e := New("STU1", "c", "b", time.Now())

	require.NoError(t, e.Close(StatusCompleted))
	assert.Equal(t, StatusCompleted, e.Status)
	require.NotNil(t, e.CompletionDate)

	err := e.Close(StatusDropped)
	assert.True(t, errors.Is(err, shared.ErrStateTransition))
	assert.True(t, shared.IsConstraintViolation(err))
}

func TestEnrollment_Clone(t *testing.T) {
	e := New("STU1", "c", "b", time.Now())
	require.NoError(t, e.Close(StatusCompleted))

	c := e.Clone()
	*c.CompletionDate = c.CompletionDate.AddDate(1, 0, 0)
	c.Status = StatusDropped

	assert.Equal(t, StatusCompleted, e.Status)
	assert.NotEqual(t, *e.CompletionDate, *c.CompletionDate)
}
