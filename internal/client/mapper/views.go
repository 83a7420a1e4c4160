package mapper

import (
	"strings"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/client/dto"
)

// LiveStatusFromDTO maps the live view; partial results go through the same
// record mappers as a full job
func LiveStatusFromDTO(d dto.LiveStatus) domain.LiveStatus {
	live := domain.LiveStatus{
		Job: domain.Job{
			JobID:              strings.TrimSpace(d.JobID.Value),
			Status:             domain.JobStatus(strings.TrimSpace(d.Status.Value)),
			ProgressPercentage: clampInt(d.ProgressPercentage.Value, 0, 100),
			CreatedAt:          d.CreatedAt.Value,
			StartedAt:          d.StartedAt.Value,
			CompletedAt:        d.CompletedAt.Value,
		},
		ProcessingStage:     d.ProcessingStage.Value,
		EstimatedCompletion: d.EstimatedCompletion.Value,
		AIEnhanced:          d.AIEnhanced.Value,
		ResultsAvailable:    d.ResultsAvailable.Value,
	}

	if r := d.Results; r != nil {
		scores := make(map[string]float64, len(r.ConfidenceScores))
		for k, v := range r.ConfidenceScores {
			scores[k] = v
		}
		live.PartialResults = &domain.PartialResults{
			ChequeData:             ChequeFromDTO(r.ChequeData),
			ENachFormData:          FormFromDTO(r.ENachFormData),
			ValidationReport:       ValidationReportFromDTO(r.ValidationReport),
			ConfidenceScores:       scores,
			PopulatedFormAvailable: r.PopulatedFormAvailable.Value,
		}
		live.Job.ChequeData = live.PartialResults.ChequeData
		live.Job.ENachFormData = live.PartialResults.ENachFormData
		live.Job.ValidationReport = live.PartialResults.ValidationReport
	}

	if e := d.ErrorInfo; e != nil {
		live.ErrorInfo = &domain.ErrorInfo{
			ErrorMessage: e.ErrorMessage.Value,
			RetryCount:   max(e.RetryCount.Value, 0),
			CanRetry:     e.CanRetry.Value,
		}
		live.Job.ErrorMessage = e.ErrorMessage.Value
		live.Job.RetryCount = live.ErrorInfo.RetryCount
	}

	return live
}

// LiveStatusToDTO is the inverse of LiveStatusFromDTO
func LiveStatusToDTO(l domain.LiveStatus) dto.LiveStatus {
	d := dto.LiveStatus{
		JobID:               dto.OptString(l.Job.JobID),
		Status:              dto.OptString(string(l.Job.Status)),
		ProgressPercentage:  dto.Int(l.Job.ProgressPercentage),
		CreatedAt:           dto.OptString(l.Job.CreatedAt),
		StartedAt:           dto.OptString(l.Job.StartedAt),
		CompletedAt:         dto.OptString(l.Job.CompletedAt),
		ProcessingStage:     dto.OptString(l.ProcessingStage),
		EstimatedCompletion: dto.OptString(l.EstimatedCompletion),
		AIEnhanced:          dto.Bool(l.AIEnhanced),
		ResultsAvailable:    dto.Bool(l.ResultsAvailable),
	}

	if r := l.PartialResults; r != nil {
		scores := make(dto.FloatMap, len(r.ConfidenceScores))
		for k, v := range r.ConfidenceScores {
			scores[k] = v
		}
		d.Results = &dto.LiveResults{
			ChequeData:             ChequeToDTO(r.ChequeData),
			ENachFormData:          FormToDTO(r.ENachFormData),
			ValidationReport:       ValidationReportToDTO(r.ValidationReport),
			ConfidenceScores:       scores,
			PopulatedFormAvailable: dto.Bool(r.PopulatedFormAvailable),
		}
	}

	if e := l.ErrorInfo; e != nil {
		d.ErrorInfo = &dto.ErrorInfo{
			ErrorMessage: dto.OptString(e.ErrorMessage),
			RetryCount:   dto.Int(e.RetryCount),
			CanRetry:     dto.Bool(e.CanRetry),
		}
	}

	return d
}

// JobResultsFromDTO maps the condensed results view
func JobResultsFromDTO(d dto.JobResults) domain.JobResults {
	res := domain.JobResults{JobID: strings.TrimSpace(d.JobID.Value)}

	if p := d.ProcessingStatus; p != nil {
		res.ProcessingStatus = domain.ProcessingStatus{
			Status:    domain.JobStatus(strings.TrimSpace(p.Status.Value)),
			Progress:  clampInt(p.Progress.Value, 0, 100),
			Message:   p.Message.Value,
			Completed: p.Completed.Value,
		}
	}

	if e := d.ExtractedData; e != nil {
		res.ExtractedData = &domain.ResultsExtraction{
			ChequeInfo:        copyStringMap(e.ChequeInfo),
			FormInfo:          copyStringMap(e.FormInfo),
			ConfidenceOverall: clampFloat(e.ConfidenceOverall.Value, 0, 1),
		}
	}

	if v := d.Validation; v != nil {
		errs := IssuesFromDTO(v.Errors)
		res.Validation = &domain.ResultsValidation{
			IsValid:           v.IsValid.Value && len(errs) == 0,
			NeedsReview:       v.NeedsReview.Value,
			Errors:            errs,
			Warnings:          IssuesFromDTO(v.Warnings),
			CompletenessScore: v.CompletenessScore.Value,
		}
	}

	if f := d.FormGeneration; f != nil {
		res.FormGeneration = &domain.FormGeneration{
			PDFGenerated:    f.PDFGenerated.Value,
			DownloadURL:     f.DownloadURL.Value,
			ReadyForSigning: f.ReadyForSigning.Value,
		}
	}

	return res
}

// JobResultsToDTO is the inverse of JobResultsFromDTO
func JobResultsToDTO(r domain.JobResults) dto.JobResults {
	d := dto.JobResults{
		JobID: dto.OptString(r.JobID),
		ProcessingStatus: &dto.ProcessingStatus{
			Status:    dto.OptString(string(r.ProcessingStatus.Status)),
			Progress:  dto.Int(r.ProcessingStatus.Progress),
			Message:   dto.OptString(r.ProcessingStatus.Message),
			Completed: dto.Bool(r.ProcessingStatus.Completed),
		},
	}

	if e := r.ExtractedData; e != nil {
		d.ExtractedData = &dto.ExtractedDataMobile{
			ChequeInfo:        dto.StringMap(copyStringMap(e.ChequeInfo)),
			FormInfo:          dto.StringMap(copyStringMap(e.FormInfo)),
			ConfidenceOverall: dto.Float(e.ConfidenceOverall),
		}
	}

	if v := r.Validation; v != nil {
		d.Validation = &dto.ValidationMobile{
			IsValid:           dto.Bool(v.IsValid),
			NeedsReview:       dto.Bool(v.NeedsReview),
			Errors:            IssuesToDTO(v.Errors),
			Warnings:          IssuesToDTO(v.Warnings),
			CompletenessScore: dto.Float(v.CompletenessScore),
		}
	}

	if f := r.FormGeneration; f != nil {
		d.FormGeneration = &dto.FormGeneration{
			PDFGenerated:    dto.Bool(f.PDFGenerated),
			DownloadURL:     dto.OptString(f.DownloadURL),
			ReadyForSigning: dto.Bool(f.ReadyForSigning),
		}
	}

	return d
}

// ValidationRequestToDTO builds the validate body. Corrections keep their
// order; empty optional values are sent as null.
func ValidationRequestToDTO(corrections []domain.FieldCorrection, reviewerNotes string, approve bool) dto.ValidationRequest {
	req := dto.ValidationRequest{
		Corrections:   make([]dto.FieldCorrection, 0, len(corrections)),
		ReviewerNotes: optional(reviewerNotes),
		Approve:       approve,
	}
	for _, c := range corrections {
		req.Corrections = append(req.Corrections, dto.FieldCorrection{
			FieldName:      c.FieldName,
			OriginalValue:  optional(c.OriginalValue),
			CorrectedValue: c.CorrectedValue,
			Reason:         optional(c.Reason),
		})
	}
	return req
}

// CorrectionsFromDTO is the inverse of the correction part of ValidationRequestToDTO
func CorrectionsFromDTO(list []dto.FieldCorrection) []domain.FieldCorrection {
	out := make([]domain.FieldCorrection, 0, len(list))
	for _, c := range list {
		out = append(out, domain.FieldCorrection{
			FieldName:      c.FieldName,
			OriginalValue:  deref(c.OriginalValue),
			CorrectedValue: c.CorrectedValue,
			Reason:         deref(c.Reason),
		})
	}
	return out
}

// ValidationResponseFromDTO maps the validate answer, keeping updated_fields order
func ValidationResponseFromDTO(d dto.ValidationResponse) domain.ValidationResponse {
	return domain.ValidationResponse{
		JobID:               strings.TrimSpace(d.JobID.Value),
		Status:              d.Status.Value,
		Message:             d.Message.Value,
		UpdatedFields:       stringsOrEmpty(d.UpdatedFields),
		ValidationTimestamp: d.ValidationTimestamp.Value,
	}
}

// ValidationResponseToDTO is the inverse of ValidationResponseFromDTO
func ValidationResponseToDTO(v domain.ValidationResponse) dto.ValidationResponse {
	return dto.ValidationResponse{
		JobID:               dto.OptString(v.JobID),
		Status:              dto.OptString(v.Status),
		Message:             dto.OptString(v.Message),
		UpdatedFields:       dto.StringList(stringsOrEmpty(v.UpdatedFields)),
		ValidationTimestamp: dto.OptString(v.ValidationTimestamp),
	}
}

// HealthFromDTO maps the health payload
func HealthFromDTO(d dto.Health) domain.Health {
	services := make(map[string]bool, len(d.Services))
	for k, v := range d.Services {
		services[k] = v
	}
	return domain.Health{
		Status:    d.Status.Value,
		Version:   d.Version.Value,
		Timestamp: d.Timestamp.Value,
		Services:  services,
	}
}

// HealthToDTO is the inverse of HealthFromDTO
func HealthToDTO(h domain.Health) dto.Health {
	services := make(dto.BoolMap, len(h.Services))
	for k, v := range h.Services {
		services[k] = v
	}
	return dto.Health{
		Status:    dto.OptString(h.Status),
		Version:   dto.OptString(h.Version),
		Timestamp: dto.OptString(h.Timestamp),
		Services:  services,
	}
}

// TokenFromDTO maps an issued token
func TokenFromDTO(d dto.Token) domain.Token {
	tokenType := d.TokenType.Value
	if tokenType == "" {
		tokenType = "bearer"
	}
	return domain.Token{
		AccessToken: strings.TrimSpace(d.AccessToken.Value),
		TokenType:   tokenType,
		ExpiresIn:   d.ExpiresIn.Value,
	}
}

// TokenToDTO is the inverse of TokenFromDTO
func TokenToDTO(t domain.Token) dto.Token {
	return dto.Token{
		AccessToken: dto.OptString(t.AccessToken),
		TokenType:   dto.OptString(t.TokenType),
		ExpiresIn:   dto.Int(t.ExpiresIn),
	}
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
