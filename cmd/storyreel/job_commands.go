package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"storyreel/internal/renderjob"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "build <project-id>",
		Short: "Queue a render job for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			manager, err := ctx.newManager()
			if err != nil {
				return err
			}

			job, err := manager.StartBuild(cmd.Context(), args[0])
			var conflict *renderjob.ConflictError
			if errors.As(err, &conflict) {
				fmt.Printf("build rejected: job %s is already in flight for project %s\n", conflict.ExistingJobID, conflict.ProjectID)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("queued render job %s\n", job.ID)
			return nil
		},
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List render jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.openStore()
			if err != nil {
				return err
			}

			var statuses []renderjob.Status
			if statusFilter != "" {
				status, ok := renderjob.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			jobs, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("no render jobs")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					job.ProjectID,
					string(job.Status),
					strconv.Itoa(job.Attempt),
					fmt.Sprintf("%.0f%%", job.Progress),
					job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Println(renderTable(
				[]string{"Job", "Project", "Status", "Attempt", "Progress", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show jobs with this status")
	return cmd
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show one render job, refreshing it from the renderer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			manager, err := ctx.newManager()
			if err != nil {
				return err
			}

			job, err := manager.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("job:      %s\n", job.ID)
			fmt.Printf("project:  %s\n", job.ProjectID)
			fmt.Printf("status:   %s\n", job.Status)
			fmt.Printf("attempt:  %d\n", job.Attempt)
			fmt.Printf("progress: %.0f%%\n", job.Progress)
			if job.OutputURL != "" {
				fmt.Printf("output:   %s\n", job.OutputURL)
			}
			if job.ErrorMessage != "" {
				fmt.Printf("error:    %s\n", job.ErrorMessage)
			}
			if job.NextRetryAt != nil {
				fmt.Printf("retry at: %s\n", job.NextRetryAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a non-terminal render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			manager, err := ctx.newManager()
			if err != nil {
				return err
			}
			job, err := manager.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("job %s cancelled\n", job.ID)
			return nil
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Create a new job for a permanently failed one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			manager, err := ctx.newManager()
			if err != nil {
				return err
			}
			job, err := manager.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("queued replacement job %s\n", job.ID)
			return nil
		},
	}
}
