package databasemigration_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitesh22rana/provisioner/internal/service/databasemigration"
	databasemigrationmock "github.com/hitesh22rana/provisioner/internal/service/databasemigration/mock"
)

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mock func(repo *databasemigrationmock.MockRepository)
		code codes.Code
		step string
	}{
		{
			name: "success",
			mock: func(repo *databasemigrationmock.MockRepository) {
				gomock.InOrder(
					repo.EXPECT().MigratePostgres(gomock.Any()).Return(nil),
					repo.EXPECT().MigrateClickHouse(gomock.Any()).Return(nil),
				)
			},
		},
		{
			name: "error: postgres failure stops the job",
			mock: func(repo *databasemigrationmock.MockRepository) {
				repo.EXPECT().MigratePostgres(gomock.Any()).Return(status.Error(codes.Internal, "postgres migration failed after retries"))
			},
			code: codes.Internal,
			step: "journal",
		},
		{
			name: "error: clickhouse failure",
			mock: func(repo *databasemigrationmock.MockRepository) {
				repo.EXPECT().MigratePostgres(gomock.Any()).Return(nil)
				repo.EXPECT().MigrateClickHouse(gomock.Any()).Return(status.Error(codes.Internal, "clickhouse migration failed after retries"))
			},
			code: codes.Internal,
			step: "archive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			repo := databasemigrationmock.NewMockRepository(ctrl)
			tt.mock(repo)

			err := databasemigration.New(repo).Run(t.Context())
			assert.Equal(t, tt.code, status.Code(err))
			if tt.step != "" {
				assert.True(t, strings.HasPrefix(status.Convert(err).Message(), tt.step+": "))
			}
		})
	}
}
