//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=./mock/$GOFILE

package databasemigration

import (
	"context"
	"time"

	"go.uber.org/zap"

	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
)

// Service applies the database migrations.
type Service interface {
	Run(ctx context.Context) error
}

// Config bounds the migration job.
type Config struct {
	// Timeout caps the whole run, retries included. Zero means no cap.
	Timeout time.Duration
}

// DatabaseMigration is the one-shot migration job.
type DatabaseMigration struct {
	logger *zap.Logger
	cfg    *Config
	svc    Service
}

// New creates a new database migration job.
func New(ctx context.Context, cfg *Config, svc Service) *DatabaseMigration {
	return &DatabaseMigration{
		logger: loggerpkg.FromContext(ctx),
		cfg:    cfg,
		svc:    svc,
	}
}

// Run applies the migrations once.
func (dm *DatabaseMigration) Run(ctx context.Context) error {
	if dm.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dm.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := dm.svc.Run(loggerpkg.WithLogger(ctx, dm.logger)); err != nil {
		dm.logger.Error("database migration job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}

	dm.logger.Info("database migration job completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}
