package models

import (
	"path/filepath"
	"strings"
)

// RiskLabel is the categorical classifier output attached to a violation
type RiskLabel string

const (
	RiskHigh                 RiskLabel = "high-risk"
	RiskLow                  RiskLabel = "low-risk"
	RiskManualReviewRequired RiskLabel = "manual-review-required"
	RiskModelOffline         RiskLabel = "model-offline"
)

// Transaction store schema
const (
	TransactionsTable = "unified_transactions"

	ColumnSubjectID   = "subject_id"
	ColumnEventType   = "event_type"
	ColumnValue       = "val"
	ColumnIsViolation = "is_violation"
	ColumnSource      = "source"
)

// Transaction is a row of the unified_transactions table
type Transaction struct {
	SubjectID   string  `json:"subject_id" db:"subject_id"`
	EventType   string  `json:"event_type" db:"event_type"`
	Val         float64 `json:"val" db:"val"`
	IsViolation int     `json:"is_violation" db:"is_violation"`
	Source      string  `json:"source" db:"source"`
}

// Violation is a flagged transaction enriched with the policy reason and a risk label
type Violation struct {
	SubjectID string    `json:"subject_id"`
	EventType string    `json:"event_type"`
	Val       float64   `json:"val"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	RiskLabel RiskLabel `json:"risk_label"`
}

// AuditReport is returned for every submitted policy document
type AuditReport struct {
	PolicyName      string      `json:"policy_name"`
	TotalViolations int         `json:"total_violations"`
	Violations      []Violation `json:"violations"`
}

// NewAuditReport builds a report, keeping the count in sync with the list
func NewAuditReport(policyName string, violations []Violation) *AuditReport {
	if violations == nil {
		violations = []Violation{}
	}
	return &AuditReport{
		PolicyName:      policyName,
		TotalViolations: len(violations),
		Violations:      violations,
	}
}

// Document is an uploaded policy document
type Document struct {
	Name    string
	Content []byte
}

// IsPDF reports whether the document should be forwarded as a PDF blob
func (d Document) IsPDF() bool {
	return strings.EqualFold(filepath.Ext(d.Name), ".pdf")
}

// Text returns the document content as plain text
func (d Document) Text() string {
	return string(d.Content)
}
