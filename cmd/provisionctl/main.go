package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/hitesh22rana/provisioner/internal/client"
)

const (
	// ExitOk and ExitError are the exit codes.
	ExitOk = iota
	// ExitError is the exit code for errors.
	ExitError
)

const defaultServerURL = "http://localhost:8080"

// version is the cli version.
var version string

type options struct {
	serverURL string
	timeout   time.Duration
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+errorMessage(err)))
		return ExitError
	}

	return ExitOk
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "provisionctl",
		Short:         "Provision CI/CD tools onto build machines",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serverURL := os.Getenv("PROVISIONER_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.serverURL, "server", serverURL, "provisioner server url (env PROVISIONER_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "timeout of a single request")

	root.AddCommand(
		newToolsCmd(opts),
		newHostsCmd(opts),
		newCreateCmd(opts),
		newListCmd(opts),
		newGetCmd(opts),
		newLogsCmd(opts),
		newWatchCmd(opts),
	)

	return root
}

func (o *options) client() (*client.Client, error) {
	return client.New(&client.Config{
		BaseURL:        o.serverURL,
		RequestTimeout: o.timeout,
	})
}
