package mapper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/client/dto"
)

const fixtureDir = "../testdata"

func loadFixture(t *testing.T, name string, v any) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fixtureDir, name))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
	return data
}

func loadJob(t *testing.T, name string) domain.Job {
	t.Helper()
	var d dto.Job
	loadFixture(t, name, &d)
	return JobFromDTO(d)
}

func TestOverallConfidence(t *testing.T) {
	tests := []struct {
		name     string
		scores   map[string]float64
		expected float64
		ok       bool
	}{
		{
			name:     "mean when overall missing",
			scores:   map[string]float64{"account_number": 0.98, "ifsc_code": 0.92},
			expected: 0.95,
			ok:       true,
		},
		{
			name:     "overall wins",
			scores:   map[string]float64{"overall": 0.5, "account_number": 0.98},
			expected: 0.5,
			ok:       true,
		},
		{
			name:     "single score",
			scores:   map[string]float64{"amount": 0.7},
			expected: 0.7,
			ok:       true,
		},
		{name: "empty means no confidence", scores: map[string]float64{}, ok: false},
		{name: "nil means no confidence", scores: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OverallConfidence(tt.scores)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestJobFromDTO_Completed(t *testing.T) {
	job := loadJob(t, "job_completed.json")

	assert.Equal(t, "3f6c2a8e-5b1d-4c1e-9a57-0d2f1b6e8c41", job.JobID)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.True(t, job.Status.IsTerminal())
	assert.Equal(t, 100, job.ProgressPercentage)
	assert.Equal(t, "CUST-0042", job.CustomerIdentifier)
	require.NotNil(t, job.ExtractedData)
	assert.Equal(t, "1179", job.ExtractedData.Amount)

	require.NotNil(t, job.ChequeData)
	assert.Equal(t, "HDFC0000123", job.ChequeData.IFSCCode)
	assert.True(t, job.ChequeData.HasConfidence)
	assert.InDelta(t, 0.95, job.ChequeData.OverallConfidence, 1e-9)
	assert.NotContains(t, job.ChequeData.ConfidenceScores, OverallConfidenceKey)
	require.NotNil(t, job.ChequeData.SignaturePresent)
	assert.True(t, *job.ChequeData.SignaturePresent)

	require.NotNil(t, job.ENachFormData)
	assert.Equal(t, "MAXIMUM", job.ENachFormData.DebitType)
	assert.Equal(t, "HDFC7000000012345678", job.ENachFormData.UMRN)
	assert.Empty(t, job.ENachFormData.Issues)

	require.NotNil(t, job.ValidationReport)
	assert.True(t, job.ValidationReport.IsValid)
	assert.True(t, job.ValidationReport.RequiresManualReview)
	require.Len(t, job.ValidationReport.Warnings, 1)
	assert.Equal(t, "warning", job.ValidationReport.Warnings[0].Severity)
	assert.Equal(t, "Signature missing on mandate form", job.ValidationReport.Warnings[0].Message)
}

func TestJobFromDTO_Failed(t *testing.T) {
	job := loadJob(t, "job_failed.json")

	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "OCR confidence too low", job.ErrorMessage)
	assert.Equal(t, 2, job.RetryCount)
	assert.Empty(t, job.CompletedAt)
	assert.Nil(t, job.ChequeData)
	assert.Nil(t, job.ENachFormData)

	report := job.ValidationReport
	require.NotNil(t, report)
	assert.False(t, report.IsValid)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "account_number", report.Errors[0].Field)
	assert.Equal(t, domain.DefaultSeverity, report.Errors[0].Severity)
	assert.Equal(t, "critical", report.Errors[1].Severity)
	assert.Equal(t, []string{"account_number", "ifsc_code"}, report.ReviewFields)
}

func TestJobFromDTO_LooseTypes(t *testing.T) {
	job := loadJob(t, "job_loose.json")

	assert.Equal(t, "job-loose-01", job.JobID)
	assert.Equal(t, domain.JobStatus("Queued_For_Review"), job.Status)
	assert.False(t, job.Status.IsKnown())
	assert.Equal(t, 45, job.ProgressPercentage)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "42", job.CustomerIdentifier)

	cheque := job.ChequeData
	require.NotNil(t, cheque)
	assert.Equal(t, "50100234567891", cheque.AccountNumber)
	assert.Equal(t, "1179.5", cheque.Amount)
	assert.Equal(t, map[string]float64{"overall": 0.77, "account_number": 0.99}, cheque.ConfidenceScores)
	assert.InDelta(t, 0.77, cheque.OverallConfidence, 1e-9)
	require.NotNil(t, cheque.SignaturePresent)
	assert.True(t, *cheque.SignaturePresent)
	assert.Nil(t, cheque.Issues)

	require.NotNil(t, job.ENachFormData)
	assert.Equal(t, domain.DefaultDebitType, job.ENachFormData.DebitType)

	report := job.ValidationReport
	require.NotNil(t, report)
	assert.False(t, report.IsValid)
	assert.True(t, report.RequiresManualReview)
	assert.InDelta(t, 0.66, report.ConfidenceScore, 1e-9)
	assert.Equal(t, []string{"amount"}, report.ReviewFields)
}

func TestJobFromDTO_ChequeOnly(t *testing.T) {
	job := loadJob(t, "job_cheque_only.json")

	assert.Nil(t, job.ENachFormData)
	assert.Nil(t, job.ValidationReport)
	require.NotNil(t, job.ChequeData)
	assert.NotNil(t, job.ChequeData.ConfidenceScores)
	assert.Empty(t, job.ChequeData.ConfidenceScores)
	assert.False(t, job.ChequeData.HasConfidence)
	assert.Zero(t, job.ChequeData.OverallConfidence)
	assert.Nil(t, job.ChequeData.SignaturePresent)
}

func TestJobFromDTO_Inconsistent(t *testing.T) {
	var d dto.Job
	loadFixture(t, "job_inconsistent.json", &d)
	assert.True(t, Inconsistent(d.ValidationReport))

	job := JobFromDTO(d)
	require.NotNil(t, job.ValidationReport)
	assert.False(t, job.ValidationReport.IsValid)
	assert.Len(t, job.ValidationReport.Errors, 1)
	assert.NotNil(t, job.ValidationReport.Warnings)
	assert.Equal(t, 1.0, job.ValidationReport.ConfidenceScore)
	assert.NotNil(t, job.ValidationReport.ReviewFields)
}

func TestValidationReport_ValidImpliesNoErrors(t *testing.T) {
	fixtures, err := filepath.Glob(filepath.Join(fixtureDir, "job_*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, fixtures)

	check := func(t *testing.T, r *domain.ValidationReport) {
		if r != nil && r.IsValid {
			assert.Empty(t, r.Errors)
		}
	}

	for _, path := range fixtures {
		name := filepath.Base(path)
		t.Run(name, func(t *testing.T) {
			if name == "job_results.json" {
				var d dto.JobResults
				loadFixture(t, name, &d)
				res := JobResultsFromDTO(d)
				if res.Validation != nil && res.Validation.IsValid {
					assert.Empty(t, res.Validation.Errors)
				}
				return
			}
			check(t, loadJob(t, name).ValidationReport)
		})
	}

	var live dto.LiveStatus
	loadFixture(t, "live_status.json", &live)
	check(t, LiveStatusFromDTO(live).PartialResults.ValidationReport)
}

func TestJobFromDTO_Idempotent(t *testing.T) {
	var d dto.Job
	loadFixture(t, "job_completed.json", &d)

	first := JobFromDTO(d)
	second := JobFromDTO(d)
	assert.Equal(t, first, second)

	// mapping must not alias the wire maps
	first.ChequeData.ConfidenceScores["account_number"] = 0
	assert.Equal(t, 0.98, d.ChequeData.ConfidenceScores["account_number"])
}

func TestJob_RoundTrip(t *testing.T) {
	var d dto.Job
	original := loadFixture(t, "job_completed.json", &d)

	encoded, err := json.Marshal(JobToDTO(JobFromDTO(d)))
	require.NoError(t, err)
	assert.JSONEq(t, string(original), string(encoded))
}

func TestJob_RoundTripKeepsEmptyIssues(t *testing.T) {
	original := `{
		"job_id": "job-1",
		"status": "processing",
		"progress_percentage": 40,
		"retry_count": 0,
		"cheque_data": {"confidence_scores": {}, "issues": []},
		"enach_form_data": {"debit_type": "FIXED", "issues": []}
	}`

	var d dto.Job
	require.NoError(t, json.Unmarshal([]byte(original), &d))
	job := JobFromDTO(d)
	assert.NotNil(t, job.ChequeData.Issues)
	assert.NotNil(t, job.ENachFormData.Issues)

	encoded, err := json.Marshal(JobToDTO(job))
	require.NoError(t, err)
	assert.JSONEq(t, original, string(encoded))
}

func TestLiveStatusFromDTO(t *testing.T) {
	var d dto.LiveStatus
	loadFixture(t, "live_status.json", &d)

	live := LiveStatusFromDTO(d)
	assert.Equal(t, "job-live-01", live.Job.JobID)
	assert.Equal(t, domain.StatusProcessing, live.Job.Status)
	assert.Equal(t, 65, live.Job.ProgressPercentage)
	assert.Equal(t, "cross_validation", live.ProcessingStage)
	assert.True(t, live.AIEnhanced)
	assert.True(t, live.ResultsAvailable)

	require.NotNil(t, live.PartialResults)
	require.NotNil(t, live.PartialResults.ChequeData)
	assert.InDelta(t, 0.85, live.PartialResults.ChequeData.OverallConfidence, 1e-9)
	assert.Nil(t, live.PartialResults.ENachFormData)
	assert.Same(t, live.PartialResults.ChequeData, live.Job.ChequeData)
	assert.Equal(t, map[string]float64{"cheque": 0.85}, live.PartialResults.ConfidenceScores)

	require.NotNil(t, live.ErrorInfo)
	assert.True(t, live.ErrorInfo.CanRetry)
	assert.Empty(t, live.ErrorInfo.ErrorMessage)

	back := LiveStatusToDTO(live)
	assert.Equal(t, d.ProcessingStage, back.ProcessingStage)
	assert.Equal(t, d.Results.ConfidenceScores, back.Results.ConfidenceScores)
}

func TestJobResultsFromDTO(t *testing.T) {
	var d dto.JobResults
	loadFixture(t, "job_results.json", &d)

	res := JobResultsFromDTO(d)
	assert.Equal(t, "job-results-01", res.JobID)
	assert.Equal(t, domain.StatusCompleted, res.ProcessingStatus.Status)
	assert.True(t, res.ProcessingStatus.Completed)

	require.NotNil(t, res.ExtractedData)
	assert.Equal(t, "1179", res.ExtractedData.ChequeInfo["amount"])
	assert.Equal(t, "MONTHLY", res.ExtractedData.FormInfo["frequency"])

	require.NotNil(t, res.Validation)
	require.Len(t, res.Validation.Warnings, 1)
	assert.Equal(t, domain.DefaultSeverity, res.Validation.Warnings[0].Severity)

	require.NotNil(t, res.FormGeneration)
	assert.True(t, res.FormGeneration.ReadyForSigning)

	back := JobResultsToDTO(res)
	assert.Equal(t, d.FormGeneration.DownloadURL, back.FormGeneration.DownloadURL)
}

func TestValidation_CorrectionsAndUpdatedFieldsOrder(t *testing.T) {
	corrections := []domain.FieldCorrection{
		{FieldName: "amount", OriginalValue: "1179", CorrectedValue: "1200"},
		{FieldName: "ifsc_code", CorrectedValue: "HDFC0000124", Reason: "typo"},
		{FieldName: "account_holder_name", OriginalValue: "RAVI KUMR", CorrectedValue: "RAVI KUMAR"},
	}

	req := ValidationRequestToDTO(corrections, "", true)
	assert.Nil(t, req.ReviewerNotes)
	assert.True(t, req.Approve)

	encoded, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded dto.ValidationRequest
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, corrections, CorrectionsFromDTO(decoded.Corrections))
	assert.Nil(t, decoded.Corrections[1].OriginalValue)

	var d dto.ValidationResponse
	loadFixture(t, "validation_response.json", &d)
	resp := ValidationResponseFromDTO(d)
	assert.Equal(t, []string{"amount", "ifsc_code", "account_holder_name"}, resp.UpdatedFields)
	assert.Equal(t, "validated", resp.Status)

	again, err := json.Marshal(ValidationResponseToDTO(resp))
	require.NoError(t, err)
	var reparsed dto.ValidationResponse
	require.NoError(t, json.Unmarshal(again, &reparsed))
	assert.Equal(t, resp, ValidationResponseFromDTO(reparsed))
}

func TestHealthAndToken(t *testing.T) {
	var h dto.Health
	require.NoError(t, json.Unmarshal([]byte(`{"status":"healthy","version":"1.4.0","services":{"database":true,"ocr":"true"}}`), &h))
	health := HealthFromDTO(h)
	assert.Equal(t, map[string]bool{"database": true, "ocr": true}, health.Services)
	assert.True(t, health.Healthy())

	var tok dto.Token
	require.NoError(t, json.Unmarshal([]byte(`{"access_token":"abc","expires_in":"3600"}`), &tok))
	token := TokenFromDTO(tok)
	assert.Equal(t, domain.Token{AccessToken: "abc", TokenType: "bearer", ExpiresIn: 3600}, token)
	assert.Equal(t, "abc", TokenToDTO(token).AccessToken.Value)
}

func TestFormatDisplayDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "2025-08-08T00:00:00", expected: "08 Aug 2025"},
		{input: "08/08/2025", expected: "08 Aug 2025"},
		{input: "2025-08-08T09:15:02.123456", expected: "08 Aug 2025"},
		{input: "2025-12-31T23:59:59Z", expected: "31 Dec 2025"},
		{input: "2025-09-01", expected: "01 Sep 2025"},
		{input: "not-a-date", expected: "not-a-date"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDisplayDate(tt.input))
		})
	}
}

func TestFormatListTimestamp(t *testing.T) {
	assert.Equal(t, "Aug 08, 09:15", FormatListTimestamp("2025-08-08T09:15:02"))
	assert.Equal(t, "Aug 08, 00:00", FormatListTimestamp("08/08/2025"))
	assert.Equal(t, "yesterday", FormatListTimestamp("yesterday"))
}
