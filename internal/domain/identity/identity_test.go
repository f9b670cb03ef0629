package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStudent_Defaults(t *testing.T) {
	s := NewStudent(NewStudentParams{
		FirstName:    " Asha ",
		LastName:     "Rao",
		Email:        " Asha.Rao@Example.COM ",
		MobileNumber: "9000000001",
	})

	assert.Regexp(t, `^STU[0-9A-F]{10}$`, s.StudentID)
	assert.Equal(t, "asha.rao@example.com", s.Email)
	assert.Equal(t, "Asha", s.FirstName)
	assert.Equal(t, StudentStatusStudent, s.CurrentStatus)
	assert.Equal(t, DefaultIDProofType, s.IDProofType)
	assert.Equal(t, DefaultLeadSource, s.LeadSource)
	assert.Equal(t, "Asha Rao", s.FullName())
}

func TestStudent_MatchesSearch(t *testing.T) {
	s := &Student{FirstName: "Asha", LastName: "Rao", Email: "asha.rao@example.com"}

	tests := []struct {
		query string
		want  bool
	}{
		{"asha", true},
		{"AS", true},
		{"asha rao", true},
		{"asha.rao", true},
		{"example.com", true},
		{"rao smith", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.MatchesSearch(tt.query), "query %q", tt.query)
	}
}

func TestStudentSearchDocument(t *testing.T) {
	assert.Equal(t, "Asha  a@b.c", StudentSearchDocument("Asha", "", "a@b.c"))
}

func TestNewUser_Defaults(t *testing.T) {
	u := NewUser(NewUserParams{Email: "Admin@LMS.io", FullName: " Admin "})

	assert.Regexp(t, `^US[0-9A-F]{10}$`, u.UserID)
	assert.Equal(t, "admin@lms.io", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.True(t, u.IsActive())

	u.Deactivate()
	assert.False(t, u.IsActive())
	assert.Equal(t, UserStatusInactive, u.Status)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("admin")
	assert.True(t, ok)
	assert.True(t, r.IsValid())

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}
