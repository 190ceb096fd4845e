package models

import "time"

// StakeholderGroup determines which question set an invitation receives.
type StakeholderGroup string

const (
	GroupManagement StakeholderGroup = "management"
	GroupEmployee   StakeholderGroup = "employee"
	GroupCustomer   StakeholderGroup = "customer"
	GroupPartner    StakeholderGroup = "partner"
)

// Groups lists every valid stakeholder group in display order.
func Groups() []StakeholderGroup {
	return []StakeholderGroup{GroupManagement, GroupEmployee, GroupCustomer, GroupPartner}
}

// ValidGroup reports whether g is one of the fixed stakeholder groups.
func ValidGroup(g StakeholderGroup) bool {
	switch g {
	case GroupManagement, GroupEmployee, GroupCustomer, GroupPartner:
		return true
	}
	return false
}

// Invitation identifies one survey participant by email. The code fields are
// nil unless a passcode is currently outstanding.
type Invitation struct {
	Email         string
	Group         StakeholderGroup
	Consented     bool
	Completed     bool
	Code          *string
	CodeExpiresAt *time.Time
	Attempts      int
	Blocked       bool
	BlockReason   string
	BlockedBy     string
	BlockedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Administrator is a privileged operator. Administrators never participate in
// surveys, regardless of system mode.
type Administrator struct {
	Email       string
	PassHash    []byte
	Name        string
	Role        string
	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// SystemMode is the single global mode record. Restricted mode disables
// test-convention accounts and is entered exactly once.
type SystemMode struct {
	Restricted  bool
	ActivatedBy string
	ActivatedAt *time.Time
}

// Question is one survey question, scoped to one or more stakeholder groups.
type Question struct {
	ID       string
	Groups   []StakeholderGroup
	Text     string
	Type     string // likert, choice or text
	Options  []string
	Required bool
	Order    int
}

// Answer is a single answered question inside a submission.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// Submission is one completed survey. Email is kept for the wipe/reset path
// and replaced by an anonymized token on export.
type Submission struct {
	ID          string
	Email       string
	Group       StakeholderGroup
	Answers     []Answer
	SubmittedAt time.Time
}

// AuditEntry records a privileged operation.
type AuditEntry struct {
	Time   time.Time
	Actor  string
	Action string
	Target string
	Note   string
}
