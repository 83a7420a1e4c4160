// Package mapper converts between the backend wire shapes and the client's
// records. Every function is pure; nothing here fails on a loose payload.
package mapper

import (
	"math"
	"strings"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/client/dto"
)

// OverallConfidenceKey is the aggregate entry of a confidence mapping
const OverallConfidenceKey = "overall"

// OverallConfidence returns the "overall" score, or the mean of all scores
// when it is missing. An empty mapping has no confidence at all.
func OverallConfidence(scores map[string]float64) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	if overall, ok := scores[OverallConfidenceKey]; ok {
		return overall, true
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores)), true
}

// JobFromDTO maps a job status payload
func JobFromDTO(d dto.Job) domain.Job {
	return domain.Job{
		JobID:              strings.TrimSpace(d.JobID.Value),
		Status:             domain.JobStatus(strings.TrimSpace(d.Status.Value)),
		Message:            d.Message.Value,
		ProgressPercentage: clampInt(d.ProgressPercentage.Value, 0, 100),
		CreatedAt:          d.CreatedAt.Value,
		StartedAt:          d.StartedAt.Value,
		CompletedAt:        d.CompletedAt.Value,
		ErrorMessage:       d.ErrorMessage.Value,
		RetryCount:         max(d.RetryCount.Value, 0),
		CustomerIdentifier: d.CustomerIdentifier.Value,
		CustomerName:       d.CustomerName.Value,
		ExtractedData:      extractedFromDTO(d.ExtractedData),
		ChequeData:         ChequeFromDTO(d.ChequeData),
		ENachFormData:      FormFromDTO(d.ENachFormData),
		ValidationReport:   ValidationReportFromDTO(d.ValidationReport),
		PopulatedFormURL:   d.PopulatedFormURL.Value,
	}
}

// JobsFromDTO maps a job list, keeping server order
func JobsFromDTO(list []dto.Job) []domain.Job {
	jobs := make([]domain.Job, 0, len(list))
	for _, d := range list {
		jobs = append(jobs, JobFromDTO(d))
	}
	return jobs
}

// JobToDTO is the inverse of JobFromDTO
func JobToDTO(j domain.Job) dto.Job {
	return dto.Job{
		JobID:              dto.OptString(j.JobID),
		Status:             dto.OptString(string(j.Status)),
		Message:            dto.OptString(j.Message),
		ProgressPercentage: dto.Int(j.ProgressPercentage),
		CreatedAt:          dto.OptString(j.CreatedAt),
		StartedAt:          dto.OptString(j.StartedAt),
		CompletedAt:        dto.OptString(j.CompletedAt),
		ChequeData:         ChequeToDTO(j.ChequeData),
		ENachFormData:      FormToDTO(j.ENachFormData),
		ValidationReport:   ValidationReportToDTO(j.ValidationReport),
		PopulatedFormURL:   dto.OptString(j.PopulatedFormURL),
		ErrorMessage:       dto.OptString(j.ErrorMessage),
		RetryCount:         dto.Int(j.RetryCount),
		CustomerName:       dto.OptString(j.CustomerName),
		CustomerIdentifier: dto.OptString(j.CustomerIdentifier),
		ExtractedData:      extractedToDTO(j.ExtractedData),
	}
}

func extractedFromDTO(d *dto.ExtractedData) *domain.ExtractedData {
	if d == nil {
		return nil
	}
	return &domain.ExtractedData{
		AccountNumber:     d.AccountNumber.Value,
		AccountHolderName: d.AccountHolderName.Value,
		Amount:            d.Amount.Value,
	}
}

func extractedToDTO(e *domain.ExtractedData) *dto.ExtractedData {
	if e == nil {
		return nil
	}
	return &dto.ExtractedData{
		AccountNumber:     dto.OptString(e.AccountNumber),
		AccountHolderName: dto.OptString(e.AccountHolderName),
		Amount:            dto.OptString(e.Amount),
	}
}

// ChequeFromDTO maps extracted cheque data; nil stays nil
func ChequeFromDTO(d *dto.ChequeData) *domain.ChequeData {
	if d == nil {
		return nil
	}

	scores := make(map[string]float64, len(d.ConfidenceScores))
	for k, v := range d.ConfidenceScores {
		scores[k] = v
	}
	overall, ok := OverallConfidence(scores)

	return &domain.ChequeData{
		AccountHolderName: d.AccountHolderName.Value,
		AccountNumber:     d.AccountNumber.Value,
		BankName:          d.BankName.Value,
		BankBranch:        d.BankBranch.Value,
		IFSCCode:          d.IFSCCode.Value,
		MICRCode:          d.MICRCode.Value,
		ChequeNumber:      d.ChequeNumber.Value,
		ChequeDate:        d.ChequeDate.Value,
		Amount:            d.Amount.Value,
		ConfidenceScores:  scores,
		SignaturePresent:  d.SignaturePresent.Ptr(),
		DocumentQuality:   d.DocumentQuality.Value,
		DocumentType:      d.DocumentType.Value,
		Issues:            stringsOrNil(d.Issues),
		OverallConfidence: overall,
		HasConfidence:     ok,
	}
}

// ChequeToDTO is the inverse of ChequeFromDTO; the derived confidence is not sent
func ChequeToDTO(c *domain.ChequeData) *dto.ChequeData {
	if c == nil {
		return nil
	}

	scores := make(dto.FloatMap, len(c.ConfidenceScores))
	for k, v := range c.ConfidenceScores {
		scores[k] = v
	}

	return &dto.ChequeData{
		AccountHolderName: dto.OptString(c.AccountHolderName),
		AccountNumber:     dto.OptString(c.AccountNumber),
		BankName:          dto.OptString(c.BankName),
		BankBranch:        dto.OptString(c.BankBranch),
		IFSCCode:          dto.OptString(c.IFSCCode),
		MICRCode:          dto.OptString(c.MICRCode),
		ChequeNumber:      dto.OptString(c.ChequeNumber),
		ChequeDate:        dto.OptString(c.ChequeDate),
		Amount:            dto.OptString(c.Amount),
		ConfidenceScores:  scores,
		SignaturePresent:  dto.OptBool(c.SignaturePresent),
		DocumentQuality:   dto.OptString(c.DocumentQuality),
		DocumentType:      dto.OptString(c.DocumentType),
		Issues:            listOrNil(c.Issues),
	}
}

// FormFromDTO maps extracted mandate form data; nil stays nil
func FormFromDTO(d *dto.ENachFormData) *domain.ENachFormData {
	if d == nil {
		return nil
	}

	debitType := strings.TrimSpace(d.DebitType.Value)
	if debitType == "" {
		debitType = domain.DefaultDebitType
	}

	return &domain.ENachFormData{
		AccountHolderName: d.AccountHolderName.Value,
		AccountNumber:     d.AccountNumber.Value,
		AccountType:       d.AccountType.Value,
		BankName:          d.BankName.Value,
		BankBranch:        d.BankBranch.Value,
		IFSCCode:          d.IFSCCode.Value,
		MICRCode:          d.MICRCode.Value,
		MandateAmount:     d.MandateAmount.Value,
		MandateFrequency:  d.MandateFrequency.Value,
		MandateStartDate:  d.MandateStartDate.Value,
		MandateEndDate:    d.MandateEndDate.Value,
		DebitType:         debitType,
		CustomerEmail:     d.CustomerEmail.Value,
		CustomerMobile:    d.CustomerMobile.Value,
		CustomerName:      d.CustomerName.Value,
		UMRN:              d.UMRN.Value,
		SponsorBank:       d.SponsorBank.Value,
		UtilityCode:       d.UtilityCode.Value,
		SignaturePresent:  d.SignaturePresent.Ptr(),
		DocumentQuality:   d.DocumentQuality.Value,
		DocumentType:      d.DocumentType.Value,
		Issues:            stringsOrNil(d.Issues),
	}
}

// FormToDTO is the inverse of FormFromDTO
func FormToDTO(f *domain.ENachFormData) *dto.ENachFormData {
	if f == nil {
		return nil
	}
	return &dto.ENachFormData{
		AccountHolderName: dto.OptString(f.AccountHolderName),
		AccountNumber:     dto.OptString(f.AccountNumber),
		AccountType:       dto.OptString(f.AccountType),
		BankName:          dto.OptString(f.BankName),
		BankBranch:        dto.OptString(f.BankBranch),
		IFSCCode:          dto.OptString(f.IFSCCode),
		MICRCode:          dto.OptString(f.MICRCode),
		MandateAmount:     dto.OptString(f.MandateAmount),
		MandateFrequency:  dto.OptString(f.MandateFrequency),
		MandateStartDate:  dto.OptString(f.MandateStartDate),
		MandateEndDate:    dto.OptString(f.MandateEndDate),
		DebitType:         dto.OptString(f.DebitType),
		CustomerEmail:     dto.OptString(f.CustomerEmail),
		CustomerMobile:    dto.OptString(f.CustomerMobile),
		CustomerName:      dto.OptString(f.CustomerName),
		UMRN:              dto.OptString(f.UMRN),
		SponsorBank:       dto.OptString(f.SponsorBank),
		UtilityCode:       dto.OptString(f.UtilityCode),
		SignaturePresent:  dto.OptBool(f.SignaturePresent),
		DocumentQuality:   dto.OptString(f.DocumentQuality),
		DocumentType:      dto.OptString(f.DocumentType),
		Issues:            listOrNil(f.Issues),
	}
}

// Inconsistent reports a report that claims validity while listing errors.
// ValidationReportFromDTO maps such a report as invalid.
func Inconsistent(d *dto.ValidationReport) bool {
	return d != nil && d.IsValid.Value && len(d.Errors) > 0
}

// ValidationReportFromDTO maps a validation report; nil stays nil
func ValidationReportFromDTO(d *dto.ValidationReport) *domain.ValidationReport {
	if d == nil {
		return nil
	}

	errs := IssuesFromDTO(d.Errors)
	return &domain.ValidationReport{
		IsValid:              d.IsValid.Value && len(errs) == 0,
		Errors:               errs,
		Warnings:             IssuesFromDTO(d.Warnings),
		ConfidenceScore:      clampFloat(d.ConfidenceScore.Value, 0, 1),
		RequiresManualReview: d.RequiresManualReview.Value,
		ReviewFields:         stringsOrEmpty(d.ReviewFields),
	}
}

// ValidationReportToDTO is the inverse of ValidationReportFromDTO
func ValidationReportToDTO(r *domain.ValidationReport) *dto.ValidationReport {
	if r == nil {
		return nil
	}
	return &dto.ValidationReport{
		IsValid:              dto.Bool(r.IsValid),
		Errors:               IssuesToDTO(r.Errors),
		Warnings:             IssuesToDTO(r.Warnings),
		ConfidenceScore:      dto.Float(r.ConfidenceScore),
		RequiresManualReview: dto.Bool(r.RequiresManualReview),
		ReviewFields:         dto.StringList(stringsOrEmpty(r.ReviewFields)),
	}
}

// IssuesFromDTO maps validation issues in order
func IssuesFromDTO(list []dto.ValidationIssue) []domain.ValidationIssue {
	issues := make([]domain.ValidationIssue, 0, len(list))
	for _, d := range list {
		severity := strings.TrimSpace(d.Severity.Value)
		if severity == "" {
			severity = domain.DefaultSeverity
		}
		issues = append(issues, domain.ValidationIssue{
			Field:      d.Field.Value,
			Message:    d.Error.Value,
			Severity:   severity,
			Suggestion: d.Suggestion.Value,
		})
	}
	return issues
}

// IssuesToDTO is the inverse of IssuesFromDTO
func IssuesToDTO(list []domain.ValidationIssue) []dto.ValidationIssue {
	issues := make([]dto.ValidationIssue, 0, len(list))
	for _, i := range list {
		issues = append(issues, dto.ValidationIssue{
			Field:      dto.OptString(i.Field),
			Error:      dto.OptString(i.Message),
			Severity:   dto.OptString(i.Severity),
			Suggestion: dto.OptString(i.Suggestion),
		})
	}
	return issues
}

func stringsOrEmpty(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// stringsOrNil copies list, keeping an absent list distinct from an empty one
func stringsOrNil(list []string) []string {
	if list == nil {
		return nil
	}
	return stringsOrEmpty(list)
}

func listOrNil(list []string) dto.StringList {
	return dto.StringList(stringsOrNil(list))
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
