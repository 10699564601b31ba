package container_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitesh22rana/provisioner/internal/pkg/kind/container"
)

const (
	collectionTimeout = 30 * time.Second
)

func newDocker(t *testing.T) *container.Docker {
	t.Helper()

	// Skip if not running in CI environment
	if testing.Short() {
		t.Skip("Skipping long-running tests in short mode")
	}

	d, err := container.New(t.Context(), &container.Config{PullImages: true})
	if err != nil {
		t.Skipf("docker daemon unavailable: %v", err)
	}

	t.Cleanup(func() {
		d.Close()
	})

	require.NoError(t, d.Pull(t.Context(), "alpine:latest"))

	return d
}

func TestDocker_Run(t *testing.T) {
	t.Parallel()

	d := newDocker(t)

	tests := []struct {
		name     string
		spec     *container.Spec
		startErr bool
		want     []string
		runErr   codes.Code
	}{
		{
			name: "success",
			spec: &container.Spec{
				Image: "alpine:latest",
				Cmd:   []string{"/bin/sh", "-c", "echo 'Installing Jenkins' && echo 'Jenkins is up' >&2"},
			},
			want: []string{"Installing Jenkins", "Jenkins is up"},
		},
		{
			name: "success: environment variables",
			spec: &container.Spec{
				Image: "alpine:latest",
				Cmd:   []string{"/bin/sh", "-c", "echo $TARGET_HOST"},
				Env:   []string{"TARGET_HOST=ci-vm-01"},
			},
			want: []string{"ci-vm-01"},
		},
		{
			name: "error: nonexistent image",
			spec: &container.Spec{
				Image: "nonexistent-provisioner-image:latest",
				Cmd:   []string{"/bin/true"},
			},
			startErr: true,
		},
		{
			name: "error: nonexistent command",
			spec: &container.Spec{
				Image: "alpine:latest",
				Cmd:   []string{"/bin/nonexistent"},
			},
			startErr: true,
		},
		{
			name: "error: non-zero exit code",
			spec: &container.Spec{
				Image: "alpine:latest",
				Cmd:   []string{"/bin/sh", "-c", "echo 'About to fail...' && exit 3"},
			},
			want:   []string{"About to fail..."},
			runErr: codes.Aborted,
		},
		{
			name: "error: timeout",
			spec: &container.Spec{
				Image:   "alpine:latest",
				Cmd:     []string{"/bin/sh", "-c", "sleep 30"},
				Timeout: 2 * time.Second,
			},
			runErr: codes.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.spec.Timeout == 0 {
				tt.spec.Timeout = 20 * time.Second
			}

			lines, errs, err := d.Run(t.Context(), tt.spec)
			if tt.startErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			got, err := collect(lines)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			outcome, err := collect(errs)
			require.NoError(t, err)
			require.Len(t, outcome, 1)
			assert.Equal(t, tt.runErr, status.Code(outcome[0]))
		})
	}
}

func collect[T any](ch <-chan T) ([]T, error) {
	var collected []T
	timeout := time.After(collectionTimeout)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return collected, nil
			}
			collected = append(collected, v)
		case <-timeout:
			return collected, context.DeadlineExceeded
		}
	}
}
