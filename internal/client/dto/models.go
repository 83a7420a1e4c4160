// Package dto holds the snake_case wire shapes of the e-NACH backend.
package dto

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/v1/auth/register
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Token is returned by login and register
type Token struct {
	AccessToken NullString `json:"access_token,omitzero"`
	TokenType   NullString `json:"token_type,omitzero"`
	ExpiresIn   NullInt    `json:"expires_in,omitzero"`
}

// Job is the job status payload returned by create, get and list
type Job struct {
	JobID              NullString        `json:"job_id,omitzero"`
	Status             NullString        `json:"status,omitzero"`
	Message            NullString        `json:"message,omitzero"`
	ProgressPercentage NullInt           `json:"progress_percentage,omitzero"`
	CreatedAt          NullString        `json:"created_at,omitzero"`
	StartedAt          NullString        `json:"started_at,omitzero"`
	CompletedAt        NullString        `json:"completed_at,omitzero"`
	ChequeData         *ChequeData       `json:"cheque_data,omitempty"`
	ENachFormData      *ENachFormData    `json:"enach_form_data,omitempty"`
	ValidationReport   *ValidationReport `json:"validation_report,omitempty"`
	PopulatedFormURL   NullString        `json:"populated_form_url,omitzero"`
	ErrorMessage       NullString        `json:"error_message,omitzero"`
	RetryCount         NullInt           `json:"retry_count,omitzero"`
	CustomerName       NullString        `json:"customer_name,omitzero"`
	CustomerIdentifier NullString        `json:"customer_identifier,omitzero"`
	ExtractedData      *ExtractedData    `json:"extracted_data,omitempty"`
}

// ExtractedData is the list-view summary of a job's extraction
type ExtractedData struct {
	AccountNumber     NullString `json:"account_number,omitzero"`
	AccountHolderName NullString `json:"account_holder_name,omitzero"`
	Amount            NullString `json:"amount,omitzero"`
}

// ChequeData holds the fields extracted from the cheque image
type ChequeData struct {
	AccountHolderName NullString `json:"account_holder_name,omitzero"`
	AccountNumber     NullString `json:"account_number,omitzero"`
	BankName          NullString `json:"bank_name,omitzero"`
	BankBranch        NullString `json:"bank_branch,omitzero"`
	IFSCCode          NullString `json:"ifsc_code,omitzero"`
	MICRCode          NullString `json:"micr_code,omitzero"`
	ChequeNumber      NullString `json:"cheque_number,omitzero"`
	ChequeDate        NullString `json:"cheque_date,omitzero"`
	Amount            NullString `json:"amount,omitzero"`
	ConfidenceScores  FloatMap   `json:"confidence_scores,omitzero"`
	SignaturePresent  NullBool   `json:"signature_present,omitzero"`
	DocumentQuality   NullString `json:"document_quality,omitzero"`
	DocumentType      NullString `json:"document_type,omitzero"`
	Issues            StringList `json:"issues,omitzero"`
}

// ENachFormData holds the fields extracted from the mandate form
type ENachFormData struct {
	AccountHolderName NullString `json:"account_holder_name,omitzero"`
	AccountNumber     NullString `json:"account_number,omitzero"`
	AccountType       NullString `json:"account_type,omitzero"`
	BankName          NullString `json:"bank_name,omitzero"`
	BankBranch        NullString `json:"bank_branch,omitzero"`
	IFSCCode          NullString `json:"ifsc_code,omitzero"`
	MICRCode          NullString `json:"micr_code,omitzero"`
	MandateAmount     NullString `json:"mandate_amount,omitzero"`
	MandateFrequency  NullString `json:"mandate_frequency,omitzero"`
	MandateStartDate  NullString `json:"mandate_start_date,omitzero"`
	MandateEndDate    NullString `json:"mandate_end_date,omitzero"`
	DebitType         NullString `json:"debit_type,omitzero"`
	CustomerEmail     NullString `json:"customer_email,omitzero"`
	CustomerMobile    NullString `json:"customer_mobile,omitzero"`
	CustomerName      NullString `json:"customer_name,omitzero"`
	UMRN              NullString `json:"umrn,omitzero"`
	SponsorBank       NullString `json:"sponsor_bank,omitzero"`
	UtilityCode       NullString `json:"utility_code,omitzero"`
	SignaturePresent  NullBool   `json:"signature_present,omitzero"`
	DocumentQuality   NullString `json:"document_quality,omitzero"`
	DocumentType      NullString `json:"document_type,omitzero"`
	Issues            StringList `json:"issues,omitzero"`
}

// ValidationReport is the cross-document validation outcome
type ValidationReport struct {
	IsValid              NullBool          `json:"is_valid,omitzero"`
	Errors               []ValidationIssue `json:"errors,omitzero"`
	Warnings             []ValidationIssue `json:"warnings,omitzero"`
	ConfidenceScore      NullFloat         `json:"confidence_score,omitzero"`
	RequiresManualReview NullBool          `json:"requires_manual_review,omitzero"`
	ReviewFields         StringList        `json:"review_fields,omitzero"`
}

// ValidationIssue is one validation error or warning
type ValidationIssue struct {
	Field      NullString `json:"field,omitzero"`
	Error      NullString `json:"error,omitzero"`
	Severity   NullString `json:"severity,omitzero"`
	Suggestion NullString `json:"suggestion,omitzero"`
}

// FieldCorrection is one human-reviewed correction
type FieldCorrection struct {
	FieldName      string  `json:"field_name"`
	OriginalValue  *string `json:"original_value"`
	CorrectedValue string  `json:"corrected_value"`
	Reason         *string `json:"reason"`
}

// ValidationRequest is the body of POST /api/v1/jobs/{jobId}/validate
type ValidationRequest struct {
	Corrections   []FieldCorrection `json:"corrections"`
	ReviewerNotes *string           `json:"reviewer_notes"`
	Approve       bool              `json:"approve"`
}

// ValidationResponse is returned by the validate call
type ValidationResponse struct {
	JobID               NullString `json:"job_id,omitzero"`
	Status              NullString `json:"status,omitzero"`
	Message             NullString `json:"message,omitzero"`
	UpdatedFields       StringList `json:"updated_fields,omitzero"`
	ValidationTimestamp NullString `json:"validation_timestamp,omitzero"`
}

// Health is returned by GET /health
type Health struct {
	Status    NullString `json:"status,omitzero"`
	Version   NullString `json:"version,omitzero"`
	Timestamp NullString `json:"timestamp,omitzero"`
	Services  BoolMap    `json:"services,omitzero"`
}

// JobResults is the condensed mobile results view
type JobResults struct {
	JobID            NullString           `json:"job_id,omitzero"`
	ProcessingStatus *ProcessingStatus    `json:"processing_status,omitempty"`
	ExtractedData    *ExtractedDataMobile `json:"extracted_data,omitempty"`
	Validation       *ValidationMobile    `json:"validation,omitempty"`
	FormGeneration   *FormGeneration      `json:"form_generation,omitempty"`
}

// ProcessingStatus is the progress block of JobResults
type ProcessingStatus struct {
	Status    NullString `json:"status,omitzero"`
	Progress  NullInt    `json:"progress,omitzero"`
	Message   NullString `json:"message,omitzero"`
	Completed NullBool   `json:"completed,omitzero"`
}

// ExtractedDataMobile is the flattened extraction block of JobResults
type ExtractedDataMobile struct {
	ChequeInfo        StringMap `json:"cheque_info,omitzero"`
	FormInfo          StringMap `json:"form_info,omitzero"`
	ConfidenceOverall NullFloat `json:"confidence_overall,omitzero"`
}

// ValidationMobile is the validation block of JobResults
type ValidationMobile struct {
	IsValid           NullBool          `json:"is_valid,omitzero"`
	NeedsReview       NullBool          `json:"needs_review,omitzero"`
	Errors            []ValidationIssue `json:"errors,omitzero"`
	Warnings          []ValidationIssue `json:"warnings,omitzero"`
	CompletenessScore NullFloat         `json:"completeness_score,omitzero"`
}

// FormGeneration is the populated-form block of JobResults
type FormGeneration struct {
	PDFGenerated    NullBool   `json:"pdf_generated,omitzero"`
	DownloadURL     NullString `json:"download_url,omitzero"`
	ReadyForSigning NullBool   `json:"ready_for_signing,omitzero"`
}

// LiveStatus is the real-time job view
type LiveStatus struct {
	JobID               NullString   `json:"job_id,omitzero"`
	Status              NullString   `json:"status,omitzero"`
	ProgressPercentage  NullInt      `json:"progress_percentage,omitzero"`
	CreatedAt           NullString   `json:"created_at,omitzero"`
	StartedAt           NullString   `json:"started_at,omitzero"`
	CompletedAt         NullString   `json:"completed_at,omitzero"`
	ProcessingStage     NullString   `json:"processing_stage,omitzero"`
	EstimatedCompletion NullString   `json:"estimated_completion,omitzero"`
	AIEnhanced          NullBool     `json:"ai_enhanced,omitzero"`
	ResultsAvailable    NullBool     `json:"results_available,omitzero"`
	Results             *LiveResults `json:"results,omitempty"`
	ErrorInfo           *ErrorInfo   `json:"error_info,omitempty"`
}

// LiveResults carries the partial results of an in-flight job
type LiveResults struct {
	ChequeData             *ChequeData       `json:"cheque_data,omitempty"`
	ENachFormData          *ENachFormData    `json:"enach_form_data,omitempty"`
	ValidationReport       *ValidationReport `json:"validation_report,omitempty"`
	ConfidenceScores       FloatMap          `json:"confidence_scores,omitzero"`
	PopulatedFormAvailable NullBool          `json:"populated_form_available,omitzero"`
}

// ErrorInfo describes the failure of a live job
type ErrorInfo struct {
	ErrorMessage NullString `json:"error_message,omitzero"`
	RetryCount   NullInt    `json:"retry_count,omitzero"`
	CanRetry     NullBool   `json:"can_retry,omitzero"`
}
