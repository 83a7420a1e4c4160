package domain

import "strings"

// JobStatus is the server-reported job status. It is an open set: values the
// client does not know are kept verbatim.
type JobStatus string

// Known job statuses
const (
	StatusPending            JobStatus = "pending"
	StatusProcessing         JobStatus = "processing"
	StatusCompleted          JobStatus = "completed"
	StatusFailed             JobStatus = "failed"
	StatusValidationRequired JobStatus = "validation_required"
	StatusValidated          JobStatus = "validated"
)

// Normalized returns the lower-cased, trimmed status used for classification
func (s JobStatus) Normalized() JobStatus {
	return JobStatus(strings.ToLower(strings.TrimSpace(string(s))))
}

// IsKnown reports whether the status is one of the known values
func (s JobStatus) IsKnown() bool {
	switch s.Normalized() {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed,
		StatusValidationRequired, StatusValidated:
		return true
	}
	return false
}

// IsTerminal reports whether the server will no longer change the job
func (s JobStatus) IsTerminal() bool {
	switch s.Normalized() {
	case StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s JobStatus) String() string {
	return string(s)
}

// Job is one document-processing request tracked by id
type Job struct {
	JobID              string
	Status             JobStatus
	Message            string
	ProgressPercentage int
	CreatedAt          string
	StartedAt          string
	CompletedAt        string
	ErrorMessage       string
	RetryCount         int
	CustomerIdentifier string
	CustomerName       string
	ExtractedData      *ExtractedData
	ChequeData         *ChequeData
	ENachFormData      *ENachFormData
	ValidationReport   *ValidationReport
	PopulatedFormURL   string
}

// ExtractedData is the summary shown in job lists
type ExtractedData struct {
	AccountNumber     string
	AccountHolderName string
	Amount            string
}

// ChequeData holds the fields extracted from the cheque image
type ChequeData struct {
	AccountHolderName string
	AccountNumber     string
	BankName          string
	BankBranch        string
	IFSCCode          string
	MICRCode          string
	ChequeNumber      string
	ChequeDate        string
	Amount            string
	// ConfidenceScores is never nil; it is kept exactly as received
	ConfidenceScores map[string]float64
	SignaturePresent *bool
	DocumentQuality  string
	DocumentType     string
	Issues           []string

	// OverallConfidence is the "overall" score, or the mean of the per-field
	// scores when the server did not send one. Meaningless unless HasConfidence.
	OverallConfidence float64
	HasConfidence     bool
}

// DefaultDebitType is used when the form does not state a debit type
const DefaultDebitType = "FIXED"

// ENachFormData holds the fields extracted from the mandate form
type ENachFormData struct {
	AccountHolderName string
	AccountNumber     string
	AccountType       string
	BankName          string
	BankBranch        string
	IFSCCode          string
	MICRCode          string
	MandateAmount     string
	MandateFrequency  string
	MandateStartDate  string
	MandateEndDate    string
	DebitType         string
	CustomerEmail     string
	CustomerMobile    string
	CustomerName      string
	UMRN              string
	SponsorBank       string
	UtilityCode       string
	SignaturePresent  *bool
	DocumentQuality   string
	DocumentType      string
	Issues            []string
}

// DefaultSeverity is used for validation issues without a severity
const DefaultSeverity = "error"

// ValidationIssue is one validation error or warning
type ValidationIssue struct {
	Field      string
	Message    string
	Severity   string
	Suggestion string
}

// ValidationReport is the cross-document validation outcome. IsValid implies
// Errors is empty; RequiresManualReview is independent of IsValid.
type ValidationReport struct {
	IsValid              bool
	Errors               []ValidationIssue
	Warnings             []ValidationIssue
	ConfidenceScore      float64
	RequiresManualReview bool
	ReviewFields         []string
}
