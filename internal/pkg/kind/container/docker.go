package container

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// defaultStopGrace is the default time a container gets to stop before being killed.
	defaultStopGrace = 10 * time.Second

	// removeTimeout bounds the cleanup of a finished container.
	removeTimeout = 10 * time.Second

	// maxLineSize is the longest output line delivered as a whole.
	maxLineSize = 1 << 20
)

// Config represents the Docker client configuration.
type Config struct {
	// Host overrides DOCKER_HOST when set.
	Host       string
	Network    string
	PullImages bool
	StopGrace  time.Duration
}

// Spec describes a container to run to completion.
type Spec struct {
	Image   string
	Cmd     []string
	Env     []string
	Labels  map[string]string
	Timeout time.Duration
}

// Docker runs one-shot containers and streams their output.
type Docker struct {
	cli *client.Client
	cfg *Config
}

// New creates a new Docker client and checks that the daemon answers.
func New(ctx context.Context, cfg *Config) (*Docker, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to initialize docker client: %v", err)
	}

	d := &Docker{
		cli: cli,
		cfg: cfg,
	}

	if err := d.healthCheck(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}

	return d, nil
}

func (d *Docker) healthCheck(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return status.Errorf(codes.Unavailable, "failed to ping docker daemon: %v", err)
	}

	return nil
}

// Close closes the Docker client.
func (d *Docker) Close() error {
	return d.cli.Close()
}

// Pull pulls the image, unless pulling is disabled.
func (d *Docker) Pull(ctx context.Context, imageName string) error {
	if !d.cfg.PullImages {
		return nil
	}

	out, err := d.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return classify(err, codes.NotFound, "failed to pull image")
	}
	defer out.Close()

	// The pull completes only once its progress output is consumed
	if _, err = io.Copy(io.Discard, out); err != nil {
		return status.Errorf(codes.FailedPrecondition, "failed to read image pull output: %v", err)
	}

	return nil
}

// Run starts the container and streams its combined output line by line.
// The lines channel is closed when the output ends; the error channel then yields
// the outcome, nil for a zero exit code, and is closed.
//
//nolint:gocritic // the three results mirror the two streams and the start error
func (d *Docker) Run(ctx context.Context, spec *Spec) (<-chan string, <-chan error, error) {
	if err := d.healthCheck(ctx); err != nil {
		return nil, nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)

	hostConfig := &container.HostConfig{}
	if d.cfg.Network != "" {
		hostConfig.NetworkMode = container.NetworkMode(d.cfg.Network)
	}

	resp, err := d.cli.ContainerCreate(
		runCtx,
		&container.Config{
			Image:  spec.Image,
			Cmd:    spec.Cmd,
			Env:    spec.Env,
			Labels: spec.Labels,
		},
		hostConfig,
		nil, nil, "",
	)
	if err != nil {
		cancel()
		return nil, nil, classify(err, codes.FailedPrecondition, "failed to create container")
	}

	containerID := resp.ID

	// Waiting must be set up before the start so a quick exit is not missed
	statusCh, waitErrCh := d.cli.ContainerWait(runCtx, containerID, container.WaitConditionNextExit)

	if err := d.cli.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		d.remove(containerID)
		cancel()
		return nil, nil, classify(err, codes.FailedPrecondition, "failed to start container")
	}

	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer d.remove(containerID)
		defer cancel()

		logsDone := make(chan struct{})
		go func() {
			defer close(logsDone)
			defer close(lines)
			d.stream(runCtx, containerID, lines)
		}()

		var err error
		select {
		case <-runCtx.Done():
			err = d.interrupted(runCtx, containerID)

		case werr := <-waitErrCh:
			if runCtx.Err() != nil {
				err = d.interrupted(runCtx, containerID)
			} else if werr != nil {
				err = status.Errorf(codes.Aborted, "container execution error: %v", werr)
			}

		case resp := <-statusCh:
			switch {
			case resp.Error != nil:
				err = status.Errorf(codes.Aborted, "container execution error: %s", resp.Error.Message)
			case resp.StatusCode != 0:
				err = status.Errorf(codes.Aborted, "container exited with non-zero code: %d", resp.StatusCode)
			}
		}

		<-logsDone
		errs <- err
	}()

	return lines, errs, nil
}

// stream forwards the demultiplexed output of the container, one line at a time.
func (d *Docker) stream(ctx context.Context, containerID string, lines chan<- string) {
	rc, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return
	}
	defer rc.Close()

	pr, pw := io.Pipe()
	defer pr.Close()

	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(err)
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanBoundedLines)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		select {
		case lines <- "[output truncated: " + err.Error() + "]":
		case <-ctx.Done():
		}
	}
}

// scanBoundedLines splits like bufio.ScanLines, except that a line longer than
// maxLineSize is delivered in maxLineSize pieces instead of stopping the scan.
func scanBoundedLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	advance, token, err = bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && err == nil && len(data) >= maxLineSize {
		return maxLineSize, data[:maxLineSize], nil
	}
	return advance, token, err
}

// interrupted stops the container whose run was cut short and reports why.
func (d *Docker) interrupted(ctx context.Context, containerID string) error {
	grace := d.cfg.StopGrace
	if grace <= 0 {
		grace = defaultStopGrace
	}
	timeout := int(grace.Seconds())

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace+removeTimeout)
	defer cancel()

	//nolint:errcheck // the container is force-removed afterwards anyway
	_ = d.cli.ContainerStop(stopCtx, containerID, container.StopOptions{Timeout: &timeout})

	if ctx.Err() == context.DeadlineExceeded {
		return status.Errorf(codes.DeadlineExceeded, "container execution timed out: %v", ctx.Err())
	}

	return status.Errorf(codes.Canceled, "container execution canceled: %v", ctx.Err())
}

func (d *Docker) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	//nolint:errcheck // best effort, the container may already be gone
	_ = d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

// classify maps a Docker error onto a status error, telling an unreachable daemon apart.
func classify(err error, fallback codes.Code, msg string) error {
	switch {
	case client.IsErrConnectionFailed(err):
		return status.Errorf(codes.Unavailable, "docker daemon unavailable: %v", err)
	case errdefs.IsNotFound(err):
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	default:
		return status.Errorf(fallback, "%s: %v", msg, err)
	}
}
