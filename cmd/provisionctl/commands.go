package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitesh22rana/provisioner/internal/client"
	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	statusColors = map[jobsmodel.JobStatus]lipgloss.Color{
		jobsmodel.JobStatusPending: lipgloss.Color("11"),
		jobsmodel.JobStatusRunning: lipgloss.Color("12"),
		jobsmodel.JobStatusSuccess: lipgloss.Color("10"),
		jobsmodel.JobStatusFailed:  lipgloss.Color("9"),
	}
)

// statusBadge renders the job status in its color.
func statusBadge(s jobsmodel.JobStatus) string {
	color, ok := statusColors[s]
	if !ok {
		return string(s)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(string(s))
}

// errorMessage strips the status code wrapping of err.
func errorMessage(err error) string {
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}

func newToolsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the provisionable tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			tools, err := c.ListTools(cmd.Context())
			if err != nil {
				return err
			}

			t := newTable("TOOL", "ACTION")
			for _, tool := range tools {
				t.Row(tool.Name, tool.Label)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newHostsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List the target hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			hosts, err := c.ListHosts(cmd.Context())
			if err != nil {
				return err
			}

			t := newTable("HOST", "ADDRESS")
			for _, host := range hosts {
				t.Row(host.Name, host.Address)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newCreateCmd(opts *options) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "create <tool> <host>",
		Short: "Start provisioning a tool onto a host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			job, err := c.CreateJob(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", job.ID, statusBadge(job.Status))
			if !follow {
				return nil
			}

			return followLogs(cmd, c, job.ID)
		},
	}

	addFollowFlag(cmd.Flags(), &follow)
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var jobStatus string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the provisioning jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			jobs, err := c.ListJobs(cmd.Context(), jobStatus)
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no jobs"))
				return nil
			}

			t := newTable("ID", "TOOL", "HOST", "STATUS", "UPDATED")
			for _, job := range jobs {
				t.Row(job.ID, job.Tool.ToString(), job.TargetHost, statusBadge(job.Status), job.UpdatedAt.Local().Format(time.DateTime))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobStatus, "status", "", "only list jobs in this status (PENDING, RUNNING, SUCCESS, FAILED)")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a provisioning job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			job, err := c.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
}

func newLogsCmd(opts *options) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print the log of a provisioning job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			if follow {
				return followLogs(cmd, c, args[0])
			}

			logs, err := c.DownloadLogs(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), logs)
			return nil
		},
	}

	addFollowFlag(cmd.Flags(), &follow)
	return cmd
}

// followLogs prints the log as it is produced and fails when the job failed.
func followLogs(cmd *cobra.Command, c *client.Client, jobID string) error {
	out := cmd.OutOrStdout()

	final, err := c.StreamLogs(cmd.Context(), jobID, client.StreamHandler{
		Line: func(line jobsmodel.LogLine) {
			fmt.Fprintln(out, line.Text)
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s\n", mutedStyle.Render("job finished:"), statusBadge(final))
	if final == jobsmodel.JobStatusFailed {
		return status.Errorf(codes.Aborted, "job %s failed", jobID)
	}

	return nil
}

func printJob(w io.Writer, job *jobsmodel.Job) {
	field := func(name, value string) {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render(fmt.Sprintf("%-9s", name)), value)
	}

	field("ID", job.ID)
	field("Tool", job.Tool.Label())
	field("Host", job.TargetHost)
	field("Status", statusBadge(job.Status))
	if job.Message != "" {
		field("Message", job.Message)
	}
	field("Created", job.CreatedAt.Local().Format(time.DateTime))
	field("Updated", job.UpdatedAt.Local().Format(time.DateTime))
}

func addFollowFlag(fs *pflag.FlagSet, follow *bool) {
	fs.BoolVarP(follow, "follow", "f", false, "stream the job log until the job finishes")
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...)
}
