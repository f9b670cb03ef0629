package identity

import (
	"strings"
	"time"
)

// StudentStatus describes what a student currently does outside the platform.
// It is unrelated to UserStatus.
type StudentStatus string

const (
	StudentStatusStudent      StudentStatus = "Student"
	StudentStatusProfessional StudentStatus = "Working Professional"
	StudentStatusFreelancer   StudentStatus = "Freelancer"
	StudentStatusUnemployed   StudentStatus = "Unemployed"
)

// IsValid reports whether s is a known student status.
func (s StudentStatus) IsValid() bool {
	switch s {
	case StudentStatusStudent, StudentStatusProfessional, StudentStatusFreelancer, StudentStatusUnemployed:
		return true
	default:
		return false
	}
}

// Defaults applied when KYC fields are omitted.
const (
	DefaultIDProofType = "Aadhaar Card"
	DefaultLeadSource  = "Instagram Ad"
)

// Student is a learner. Email is unique across students; mobile number is
// required but may repeat.
type Student struct {
	StudentID            string
	FirstName            string
	LastName             string
	DateOfBirth          *time.Time
	Gender               string
	ProfilePhotoURL      string
	Email                string
	MobileNumber         string
	EmergencyContact     string
	ResidentialAddress   string
	CurrentStatus        StudentStatus
	HighestQualification string

	// KYC
	IDProofType string
	IDNumber    string
	LeadSource  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStudentParams holds the inputs of NewStudent.
type NewStudentParams struct {
	FirstName            string
	LastName             string
	Email                string
	MobileNumber         string
	DateOfBirth          *time.Time
	Gender               string
	ProfilePhotoURL      string
	EmergencyContact     string
	ResidentialAddress   string
	CurrentStatus        StudentStatus
	HighestQualification string
	IDProofType          string
	IDNumber             string
	LeadSource           string
}

// NewStudent builds a student with a fresh identifier and defaults applied.
func NewStudent(p NewStudentParams) *Student {
	now := time.Now().UTC()
	s := &Student{
		StudentID:            NewStudentID(),
		FirstName:            strings.TrimSpace(p.FirstName),
		LastName:             strings.TrimSpace(p.LastName),
		DateOfBirth:          p.DateOfBirth,
		Gender:               p.Gender,
		ProfilePhotoURL:      p.ProfilePhotoURL,
		Email:                NormalizeEmail(p.Email),
		MobileNumber:         strings.TrimSpace(p.MobileNumber),
		EmergencyContact:     p.EmergencyContact,
		ResidentialAddress:   p.ResidentialAddress,
		CurrentStatus:        p.CurrentStatus,
		HighestQualification: p.HighestQualification,
		IDProofType:          p.IDProofType,
		IDNumber:             p.IDNumber,
		LeadSource:           p.LeadSource,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if s.CurrentStatus == "" {
		s.CurrentStatus = StudentStatusStudent
	}
	if s.IDProofType == "" {
		s.IDProofType = DefaultIDProofType
	}
	if s.LeadSource == "" {
		s.LeadSource = DefaultLeadSource
	}
	return s
}

// FullName joins first and last name.
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// StudentSearchDocument is the text indexed by the student full-text surface:
// first name, last name and email, space-joined, with missing values as "".
// It must stay in sync with the SQL expression in the postgres migrations.
func StudentSearchDocument(firstName, lastName, email string) string {
	return firstName + " " + lastName + " " + email
}

// SearchDocument returns the indexed text of s.
func (s *Student) SearchDocument() string {
	return StudentSearchDocument(s.FirstName, s.LastName, s.Email)
}

// MatchesSearch reports whether every whitespace-separated term of query
// appears as a token prefix in the student's search document. Matching is
// case-insensitive, mirroring the 'simple' text-search configuration.
func (s *Student) MatchesSearch(query string) bool {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return false
	}
	tokens := searchTokens(s.SearchDocument())
	for _, term := range terms {
		found := false
		for _, tok := range tokens {
			if tok == term || strings.HasPrefix(tok, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// searchTokens splits a document the way the 'simple' parser roughly does:
// lower-case, split on whitespace, keep emails whole and also their parts.
func searchTokens(doc string) []string {
	fields := strings.Fields(strings.ToLower(doc))
	tokens := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		tokens = append(tokens, f)
		if at := strings.IndexByte(f, '@'); at > 0 {
			tokens = append(tokens, f[:at], f[at+1:])
		}
	}
	return tokens
}
