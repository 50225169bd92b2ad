package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-archiver/internal/app"
	"github.com/jonathan/transcript-archiver/internal/observability"
	"github.com/jonathan/transcript-archiver/internal/types"
)

var errSchedulerDisabled = errors.New("scheduler is disabled (scheduler.enabled is false)")

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage scheduled channel jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	Args:  cobra.NoArgs,
	RunE: withScheduler(func(cmd *cobra.Command, a *app.App, _ []string) error {
		observability.NewPrinter(cmd.OutOrStdout()).PrintJobs(a.Scheduler.ListJobs())
		return nil
	}),
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a recurring job",
	Long: `Create a job that downloads new uploads for each channel on a daily,
weekly or monthly cadence. A running server arms the job on its next start.`,
	Args: cobra.NoArgs,
	RunE: withScheduler(func(cmd *cobra.Command, a *app.App, _ []string) error {
		var channels []string
		for _, ch := range strings.Split(jobChannels, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				channels = append(channels, ch)
			}
		}
		job, err := a.Scheduler.CreateJob(cmd.Context(), types.CreateJobRequest{
			Name:         jobName,
			Channels:     channels,
			Frequency:    types.Frequency(jobFrequency),
			StartDate:    jobStartDate,
			FolderPrefix: jobFolderPrefix,
		})
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintJob(job)
		return nil
	}),
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: withScheduler(func(cmd *cobra.Command, a *app.App, args []string) error {
		if err := a.Scheduler.RemoveJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", args[0])
		return nil
	}),
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a job now and wait for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE: withScheduler(func(cmd *cobra.Command, a *app.App, args []string) error {
		job, err := a.Scheduler.Trigger(cmd.Context(), args[0], jobCatchup)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintJob(job)
		return nil
	}),
}

var (
	jobName         string
	jobChannels     string
	jobFrequency    string
	jobStartDate    string
	jobFolderPrefix string
	jobCatchup      bool
)

func init() {
	jobsCreateCmd.Flags().StringVar(&jobName, "name", "", "Job name")
	jobsCreateCmd.Flags().StringVar(&jobChannels, "channels", "", "Comma-separated channel names, handles or IDs")
	jobsCreateCmd.Flags().StringVar(&jobFrequency, "frequency", string(types.FrequencyDaily), "daily, weekly or monthly")
	jobsCreateCmd.Flags().StringVar(&jobStartDate, "start-date", "", "First publish date to include (YYYY-MM-DD, default today)")
	jobsCreateCmd.Flags().StringVar(&jobFolderPrefix, "folder-prefix", "", "Prefix for each channel's destination folder")

	jobsRunCmd.Flags().BoolVar(&jobCatchup, "catchup", false, "Filter by the job start date instead of the last run")

	jobsCmd.AddCommand(jobsListCmd, jobsCreateCmd, jobsRemoveCmd, jobsRunCmd)
	rootCmd.AddCommand(jobsCmd)
}

// withScheduler assembles the app and fails when scheduled jobs are disabled.
func withScheduler(fn func(*cobra.Command, *app.App, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		if a.Scheduler == nil {
			return errSchedulerDisabled
		}
		return fn(cmd, a, args)
	}
}
