package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	transport "github.com/deploybot/deploybot/pkg/http"
	"github.com/deploybot/deploybot/pkg/http/client"
)

const (
	EnvVariableURL = "DEPLOYBOT_URL"
)

type rootOpts struct {
	URL     string
	Timeout time.Duration
	API     *client.Client
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
deployctl submits signed deploy requests to deployd.

Workflow:
  deployctl deploy --repo git@host:org/svc.git --tag v1.2.0 --path deploy.toml:svc --key deploy.pem --wait
  deployctl status 0190f3c2-...                                     # What happened to that job?
  deployctl identity                                                # Which key does deployd clone with?
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "deployctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "http://localhost:8080",
		fmt.Sprintf("base URL of the deployd API server; you can also set the environment variable %s", EnvVariableURL))
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "timeout for each request to deployd")

	cmd.AddCommand(
		newVersionCommand(),
		newSign().Command(),
		newDeploy(opts).Command(),
		newStatus(opts).Command(),
		newIdentity(opts).Command(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}
	if url == "" {
		return newUsageError("no deployd URL given")
	}
	opts.API = client.New(&http.Client{Timeout: opts.Timeout}, transport.NewAPIRouter(), url)
	return nil
}
