package executor

import (
	"context"
	"fmt"
	"slices"
	"time"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
	"github.com/hitesh22rana/provisioner/internal/pkg/recipe"
)

// startSimulated replays the recipe's steps, one every SimulatedStepDelay.
// Hosts listed in SimulatedFailHosts fail halfway through.
func (r *Repository) startSimulated(
	ctx context.Context,
	job *jobsmodel.Job,
	rcp *recipe.Recipe,
	host inventory.Host,
	vars map[string]string,
	reporter jobsmodel.Reporter,
) (<-chan struct{}, error) {
	fail := slices.Contains(r.cfg.SimulatedFailHosts, host.Name)
	failAt := len(rcp.Steps) / 2

	return r.run(ctx, job, reporter, func(ctx context.Context) {
		timer := time.NewTimer(r.cfg.SimulatedStepDelay)
		defer timer.Stop()

		for i, step := range rcp.Steps {
			select {
			case <-ctx.Done():
				report(ctx, reporter, job.ID, jobsmodel.JobStatusFailed, "installation canceled")
				return
			case <-timer.C:
				timer.Reset(r.cfg.SimulatedStepDelay)
			}

			if fail && i == failAt {
				appendLog(ctx, reporter, job.ID, fmt.Sprintf("ERROR: %s failed on %s", recipe.Expand(step, vars), host.Name))
				report(ctx, reporter, job.ID, jobsmodel.JobStatusFailed,
					fmt.Sprintf("simulated failure on %s at step %d", host.Name, i+1),
				)
				return
			}

			appendLog(ctx, reporter, job.ID, recipe.Expand(step, vars))
		}

		report(ctx, reporter, job.ID, jobsmodel.JobStatusSuccess, fmt.Sprintf("%s is up on %s", job.Tool, host.Name))
	}), nil
}
