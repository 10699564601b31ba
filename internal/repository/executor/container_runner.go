package executor

import (
	"context"
	"fmt"

	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
	"github.com/hitesh22rana/provisioner/internal/pkg/kind/container"
	"github.com/hitesh22rana/provisioner/internal/pkg/kind/heartbeat"
	"github.com/hitesh22rana/provisioner/internal/pkg/recipe"
)

// startContainer runs the recipe's image against the target host, then probes the tool.
func (r *Repository) startContainer(
	ctx context.Context,
	job *jobsmodel.Job,
	rcp *recipe.Recipe,
	host inventory.Host,
	vars map[string]string,
	reporter jobsmodel.Reporter,
) (<-chan struct{}, error) {
	if err := r.svc.Csvc.Pull(ctx, rcp.Image); err != nil {
		return nil, err
	}

	cmd := make([]string, len(rcp.Command))
	for i, arg := range rcp.Command {
		cmd[i] = recipe.Expand(arg, vars)
	}

	lines, errs, err := r.svc.Csvc.Run(ctx, &container.Spec{
		Image: rcp.Image,
		Cmd:   cmd,
		Env:   environment(rcp, vars),
		Labels: map[string]string{
			"provisioner.job_id": job.ID,
			"provisioner.tool":   job.Tool.ToString(),
		},
		Timeout: rcp.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return r.run(ctx, job, reporter, func(ctx context.Context) {
		for line := range lines {
			appendLog(ctx, reporter, job.ID, line)
		}

		if err := <-errs; err != nil {
			report(ctx, reporter, job.ID, jobsmodel.JobStatusFailed,
				fmt.Sprintf("installation failed: %s", status.Convert(err).Message()),
			)
			return
		}

		if rcp.Readiness != nil {
			endpoint := rcp.Readiness.Endpoint(host.Address)
			appendLog(ctx, reporter, job.ID, fmt.Sprintf("Waiting for %s to answer on %s", job.Tool, endpoint))

			err := r.svc.Hsvc.WaitReady(ctx, r.cfg.ReadinessAttempts, r.cfg.ReadinessInterval, &heartbeat.Probe{
				Endpoint: endpoint,
				Status:   rcp.Readiness.ExpectedStatusCode,
				Timeout:  rcp.Readiness.Timeout,
			})
			if err != nil {
				report(ctx, reporter, job.ID, jobsmodel.JobStatusFailed,
					fmt.Sprintf("readiness check failed: %s", status.Convert(err).Message()),
				)
				return
			}
		}

		report(ctx, reporter, job.ID, jobsmodel.JobStatusSuccess, fmt.Sprintf("%s is up on %s", job.Tool, host.Name))
	}), nil
}
