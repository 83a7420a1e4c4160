package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/client/mapper"
	"github.com/cuongbtq/enach-client/internal/resource"
)

// await waits for call to settle and turns an error resource into an error
// carrying its user-facing message
func await[T any](ctx context.Context, call *resource.Call[T]) (T, error) {
	var zero T

	r, err := call.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if r.IsError() {
		return zero, errors.New(r.Message)
	}
	return r.Data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJob(w io.Writer, job domain.Job) {
	fmt.Fprintf(w, "Job:       %s\n", job.JobID)
	fmt.Fprintf(w, "Status:    %s\n", job.Status)
	fmt.Fprintf(w, "Progress:  %d%%\n", job.ProgressPercentage)
	if job.Message != "" {
		fmt.Fprintf(w, "Message:   %s\n", job.Message)
	}
	if job.CustomerName != "" || job.CustomerIdentifier != "" {
		fmt.Fprintf(w, "Customer:  %s\n", strings.TrimSpace(job.CustomerName+" "+parenthesized(job.CustomerIdentifier)))
	}
	if job.CreatedAt != "" {
		fmt.Fprintf(w, "Created:   %s\n", mapper.FormatDisplayDate(job.CreatedAt))
	}
	if job.CompletedAt != "" {
		fmt.Fprintf(w, "Completed: %s\n", mapper.FormatDisplayDate(job.CompletedAt))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:     %s\n", job.ErrorMessage)
	}
	if cheque := job.ChequeData; cheque != nil {
		fmt.Fprintf(w, "Account:   %s %s (%s)\n", cheque.AccountHolderName, cheque.AccountNumber, cheque.IFSCCode)
		if cheque.HasConfidence {
			fmt.Fprintf(w, "Confidence: %.0f%%\n", cheque.OverallConfidence*100)
		}
	}
	if form := job.ENachFormData; form != nil {
		fmt.Fprintf(w, "Mandate:   %s %s %s\n", form.MandateAmount, form.MandateFrequency, form.DebitType)
	}
	if report := job.ValidationReport; report != nil {
		fmt.Fprintf(w, "Valid:     %t (manual review: %t)\n", report.IsValid, report.RequiresManualReview)
		for _, issue := range report.Errors {
			fmt.Fprintf(w, "  error   %s: %s\n", issue.Field, issue.Message)
		}
		for _, issue := range report.Warnings {
			fmt.Fprintf(w, "  warning %s: %s\n", issue.Field, issue.Message)
		}
	}
}

func parenthesized(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

// parseCorrection parses "field=corrected" or "field=original:corrected"
func parseCorrection(s string) (domain.FieldCorrection, error) {
	field, value, ok := strings.Cut(s, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return domain.FieldCorrection{}, fmt.Errorf("invalid correction %q: expected field=value", s)
	}

	correction := domain.FieldCorrection{FieldName: field, CorrectedValue: value}
	if original, corrected, ok := strings.Cut(value, ":"); ok {
		correction.OriginalValue = original
		correction.CorrectedValue = corrected
	}
	if correction.CorrectedValue == "" {
		return domain.FieldCorrection{}, fmt.Errorf("invalid correction %q: corrected value is empty", s)
	}
	return correction, nil
}
