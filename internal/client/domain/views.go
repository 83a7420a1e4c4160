package domain

// LiveStatus is the real-time view of an in-flight job
type LiveStatus struct {
	Job                 Job
	ProcessingStage     string
	EstimatedCompletion string
	AIEnhanced          bool
	ResultsAvailable    bool
	PartialResults      *PartialResults
	ErrorInfo           *ErrorInfo
}

// PartialResults is whatever the backend has extracted so far
type PartialResults struct {
	ChequeData             *ChequeData
	ENachFormData          *ENachFormData
	ValidationReport       *ValidationReport
	ConfidenceScores       map[string]float64
	PopulatedFormAvailable bool
}

// ErrorInfo describes why a live job failed and whether it can be retried
type ErrorInfo struct {
	ErrorMessage string
	RetryCount   int
	CanRetry     bool
}

// JobResults is the condensed results view
type JobResults struct {
	JobID            string
	ProcessingStatus ProcessingStatus
	ExtractedData    *ResultsExtraction
	Validation       *ResultsValidation
	FormGeneration   *FormGeneration
}

type ProcessingStatus struct {
	Status    JobStatus
	Progress  int
	Message   string
	Completed bool
}

type ResultsExtraction struct {
	ChequeInfo        map[string]string
	FormInfo          map[string]string
	ConfidenceOverall float64
}

type ResultsValidation struct {
	IsValid           bool
	NeedsReview       bool
	Errors            []ValidationIssue
	Warnings          []ValidationIssue
	CompletenessScore float64
}

type FormGeneration struct {
	PDFGenerated    bool
	DownloadURL     string
	ReadyForSigning bool
}

// FieldCorrection is one human-reviewed correction. OriginalValue and Reason
// are optional.
type FieldCorrection struct {
	FieldName      string
	OriginalValue  string
	CorrectedValue string
	Reason         string
}

// ValidationResponse is the backend's answer to a validate call
type ValidationResponse struct {
	JobID               string
	Status              string
	Message             string
	UpdatedFields       []string
	ValidationTimestamp string
}

// Health is the backend service health
type Health struct {
	Status    string
	Version   string
	Timestamp string
	Services  map[string]bool
}

// Healthy reports whether the backend and all its services are up
func (h Health) Healthy() bool {
	if h.Status != "healthy" && h.Status != "ok" {
		return false
	}
	for _, up := range h.Services {
		if !up {
			return false
		}
	}
	return true
}

// Token is an issued bearer token
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}
