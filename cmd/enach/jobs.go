package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/enach-client/internal/client"
	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/client/mapper"
)

func createCmd(c *cli) *cobra.Command {
	var (
		chequePath string
		formPath   string
		req        client.CreateJobRequest
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a cheque image (and optionally a mandate form) for processing",
		Long: `Upload a cheque image, and optionally a filled e-NACH mandate form, to
start a processing job. Unless poller.disable_watch is set the job is
registered for background status checks picked up by enach-agent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			req.ChequeImage = client.DocumentFromPath(chequePath)
			if formPath != "" {
				req.FormDocument = client.DocumentFromPath(formPath)
			}

			job, err := await(cmd.Context(), app.Client.CreateJob(cmd.Context(), req))
			if err != nil {
				return err
			}

			printJob(cmd.OutOrStdout(), job)
			if !c.cfg.Poller.DisableWatch {
				fmt.Fprintln(cmd.OutOrStdout(), "Status changes will be reported by enach-agent.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chequePath, "cheque", "", "cheque image file")
	cmd.Flags().StringVar(&formPath, "form", "", "e-NACH mandate form file")
	cmd.Flags().StringVar(&req.CustomerIdentifier, "customer-id", "", "customer identifier")
	cmd.Flags().StringVar(&req.CustomerName, "customer-name", "", "customer name")
	cmd.Flags().StringVar(&req.CustomerEmail, "email", "", "customer email")
	cmd.Flags().StringVar(&req.CustomerMobile, "mobile", "", "customer mobile number")
	_ = cmd.MarkFlagRequired("cheque")

	return cmd
}

func statusCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the full job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			job, err := await(cmd.Context(), app.Client.GetJobStatus(cmd.Context(), args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), mapper.JobToDTO(job))
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the wire JSON")
	return cmd
}

func liveCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "live JOB_ID",
		Short: "Show the real-time processing view of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			live, err := await(cmd.Context(), app.Client.GetJobLiveStatus(cmd.Context(), args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), mapper.LiveStatusToDTO(live))
			}

			out := cmd.OutOrStdout()
			printJob(out, live.Job)
			if live.ProcessingStage != "" {
				fmt.Fprintf(out, "Stage:     %s\n", live.ProcessingStage)
			}
			if live.EstimatedCompletion != "" {
				fmt.Fprintf(out, "ETA:       %s\n", live.EstimatedCompletion)
			}
			fmt.Fprintf(out, "Results:   %s\n", availability(live.ResultsAvailable))
			if info := live.ErrorInfo; info != nil {
				fmt.Fprintf(out, "Retries:   %d (can retry: %t)\n", info.RetryCount, info.CanRetry)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the wire JSON")
	return cmd
}

func resultsCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "results JOB_ID",
		Short: "Show the condensed results of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			results, err := await(cmd.Context(), app.Client.GetJobResults(cmd.Context(), args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), mapper.JobResultsToDTO(results))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:       %s\n", results.JobID)
			fmt.Fprintf(out, "Status:    %s (%d%%)\n", results.ProcessingStatus.Status, results.ProcessingStatus.Progress)
			if ex := results.ExtractedData; ex != nil {
				fmt.Fprintf(out, "Confidence: %.0f%%\n", ex.ConfidenceOverall*100)
			}
			if v := results.Validation; v != nil {
				fmt.Fprintf(out, "Valid:     %t (needs review: %t)\n", v.IsValid, v.NeedsReview)
			}
			if f := results.FormGeneration; f != nil {
				fmt.Fprintf(out, "Form:      %s\n", availability(f.PDFGenerated))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the wire JSON")
	return cmd
}

func listCmd(c *cli) *cobra.Command {
	var filter client.ListJobsFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			jobs, err := await(cmd.Context(), app.Client.ListJobs(cmd.Context(), filter))
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}
			return printJobTable(cmd.OutOrStdout(), jobs)
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "only jobs with this status")
	cmd.Flags().StringVar(&filter.CustomerIdentifier, "customer-id", "", "only jobs for this customer")
	cmd.Flags().StringVar(&filter.DateFrom, "from", "", "created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.DateTo, "to", "", "created on or before (YYYY-MM-DD)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "page offset")

	return cmd
}

func printJobTable(out io.Writer, jobs []domain.Job) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATUS\tPROGRESS\tCUSTOMER\tCREATED")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n",
			job.JobID,
			job.Status,
			job.ProgressPercentage,
			job.CustomerName,
			mapper.FormatListTimestamp(job.CreatedAt),
		)
	}
	return w.Flush()
}

func validateCmd(c *cli) *cobra.Command {
	var (
		corrections []string
		req         client.ValidateJobRequest
	)

	cmd := &cobra.Command{
		Use:   "validate JOB_ID",
		Short: "Submit reviewed field corrections",
		Long: `Submit corrections for extracted fields. Each --correct takes
field=corrected or field=original:corrected.`,
		Example: `  enach validate 3f2a --correct amount=1197:1179 --approve`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range corrections {
				correction, err := parseCorrection(raw)
				if err != nil {
					return err
				}
				req.Corrections = append(req.Corrections, correction)
			}

			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			resp, err := await(cmd.Context(), app.Client.ValidateJob(cmd.Context(), args[0], req))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:     %s\n", resp.JobID)
			fmt.Fprintf(out, "Status:  %s\n", resp.Status)
			if resp.Message != "" {
				fmt.Fprintf(out, "Message: %s\n", resp.Message)
			}
			for _, field := range resp.UpdatedFields {
				fmt.Fprintf(out, "  updated %s\n", field)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&corrections, "correct", nil, "field correction (repeatable)")
	cmd.Flags().StringVar(&req.ReviewerNotes, "notes", "", "reviewer notes")
	cmd.Flags().BoolVar(&req.Approve, "approve", false, "approve the job after corrections")

	return cmd
}

func downloadCmd(c *cli) *cobra.Command {
	var (
		output string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "download JOB_ID",
		Short: "Download the generated mandate form PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			if output == "" {
				output = jobID + "_enach_form.pdf"
			}

			app, err := c.build(cmd.Context())
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}

			var newProgress func(total int64) io.Writer
			if !quiet {
				newProgress = func(total int64) io.Writer {
					return progressbar.NewOptions64(total,
						progressbar.OptionSetWriter(cmd.ErrOrStderr()),
						progressbar.OptionSetDescription("Downloading form"),
						progressbar.OptionShowBytes(true),
						progressbar.OptionSetWidth(40),
						progressbar.OptionClearOnFinish(),
					)
				}
			}

			n, err := await(cmd.Context(), app.Client.SaveForm(cmd.Context(), jobID, f, newProgress))
			closeErr := f.Close()
			if err != nil {
				os.Remove(output)
				return err
			}
			if closeErr != nil {
				return fmt.Errorf("failed to write output file: %w", closeErr)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", output, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default JOB_ID_enach_form.pdf)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress bar")

	return cmd
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "not available"
}
