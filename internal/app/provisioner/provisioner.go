//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=./mock/$GOFILE

package provisioner

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
)

// Service reloads the journaled jobs.
type Service interface {
	Restore(ctx context.Context) error
}

// Server serves the HTTP API until ctx is done.
type Server interface {
	Start(ctx context.Context) error
}

// Dispatcher tracks the running jobs.
type Dispatcher interface {
	Wait()
}

// Worker is a background loop, such as a log archive or an event publisher.
type Worker interface {
	Run(ctx context.Context) error
}

// Provisioner represents the provisioner server process.
type Provisioner struct {
	logger     *zap.Logger
	svc        Service
	server     Server
	dispatcher Dispatcher
	workers    []Worker
}

// New creates a new provisioner.
func New(ctx context.Context, svc Service, server Server, dispatcher Dispatcher, workers ...Worker) *Provisioner {
	return &Provisioner{
		logger:     loggerpkg.FromContext(ctx),
		svc:        svc,
		server:     server,
		dispatcher: dispatcher,
		workers:    workers,
	}
}

// Run restores the journaled jobs, then serves until ctx is done.
// The background workers are stopped only after the running jobs finished,
// so their last lines and events still get out.
func (p *Provisioner) Run(ctx context.Context) error {
	if err := p.svc.Restore(ctx); err != nil {
		p.logger.Error("failed to restore journaled jobs", zap.Error(err))
		return err
	}

	workersCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	workers, workersCtx := errgroup.WithContext(workersCtx)
	for _, w := range p.workers {
		workers.Go(func() error {
			return w.Run(workersCtx)
		})
	}

	err := p.server.Start(ctx)
	if err != nil {
		p.logger.Error("server stopped", zap.Error(err))
	}

	p.logger.Info("waiting for running jobs to finish")
	p.dispatcher.Wait()

	stopWorkers()
	if werr := workers.Wait(); werr != nil {
		p.logger.Error("background worker failed", zap.Error(werr))
		if err == nil {
			err = werr
		}
	}

	if err == nil {
		p.logger.Info("successfully stopped the provisioner server")
	}

	return err
}
