package provisioner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitesh22rana/provisioner/internal/app/provisioner"
	provisionermock "github.com/hitesh22rana/provisioner/internal/app/provisioner/mock"
)

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mock func(svc *provisionermock.MockService, server *provisionermock.MockServer, d *provisionermock.MockDispatcher, w *provisionermock.MockWorker)
		code codes.Code
	}{
		{
			name: "success: workers outlive the running jobs",
			mock: func(svc *provisionermock.MockService, server *provisionermock.MockServer, d *provisionermock.MockDispatcher, w *provisionermock.MockWorker) {
				waited := make(chan struct{})
				svc.EXPECT().Restore(gomock.Any()).Return(nil)
				server.EXPECT().Start(gomock.Any()).Return(nil)
				d.EXPECT().Wait().Do(func() { close(waited) })
				w.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
					<-ctx.Done()
					select {
					case <-waited:
						return nil
					default:
						return status.Error(codes.Internal, "stopped before the jobs finished")
					}
				})
			},
		},
		{
			name: "error: restore failed",
			mock: func(svc *provisionermock.MockService, _ *provisionermock.MockServer, _ *provisionermock.MockDispatcher, _ *provisionermock.MockWorker) {
				svc.EXPECT().Restore(gomock.Any()).Return(status.Error(codes.Unavailable, "journal unreachable"))
			},
			code: codes.Unavailable,
		},
		{
			name: "error: server failed",
			mock: func(svc *provisionermock.MockService, server *provisionermock.MockServer, d *provisionermock.MockDispatcher, w *provisionermock.MockWorker) {
				svc.EXPECT().Restore(gomock.Any()).Return(nil)
				server.EXPECT().Start(gomock.Any()).Return(status.Error(codes.Internal, "address already in use"))
				d.EXPECT().Wait()
				w.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
					<-ctx.Done()
					return nil
				})
			},
			code: codes.Internal,
		},
		{
			name: "error: worker failed",
			mock: func(svc *provisionermock.MockService, server *provisionermock.MockServer, d *provisionermock.MockDispatcher, w *provisionermock.MockWorker) {
				svc.EXPECT().Restore(gomock.Any()).Return(nil)
				server.EXPECT().Start(gomock.Any()).Return(nil)
				d.EXPECT().Wait()
				w.EXPECT().Run(gomock.Any()).Return(status.Error(codes.Unavailable, "clickhouse unreachable"))
			},
			code: codes.Unavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			svc := provisionermock.NewMockService(ctrl)
			server := provisionermock.NewMockServer(ctrl)
			d := provisionermock.NewMockDispatcher(ctrl)
			w := provisionermock.NewMockWorker(ctrl)
			tt.mock(svc, server, d, w)

			app := provisioner.New(t.Context(), svc, server, d, w)
			err := app.Run(t.Context())
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}
