package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	transport "github.com/deploybot/deploybot/pkg/http"
)

type deployOpts struct {
	*rootOpts
	repo      string
	tag       string
	path      string
	message   string
	keyPath   string
	signature string
	wait      bool
	waitFor   time.Duration
}

func newDeploy(parent *rootOpts) *deployOpts {
	return &deployOpts{rootOpts: parent}
}

func (opts *deployOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Request a deployment of a repository at a ref",
		Example: makeExample(
			"deployctl deploy --repo git@github.com:org/svc.git --tag v1.2.0 --path deploy.toml:svc --key deploy.pem",
			"deployctl deploy --repo git@github.com:org/svc.git --tag main..feature --path deploy.toml:svc --message m --signature c2ln...",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.repo, "repo", "", "git URL of the repository to deploy")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "ref to deploy; a tag, branch, commit or A..B / A...B range")
	cmd.Flags().StringVar(&opts.path, "path", "", "resource locator, <manifest-path>:<resource-key>")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "message to sign; defaults to a description of the request")
	cmd.Flags().StringVarP(&opts.keyPath, "key", "k", "", "PEM-encoded RSA private key to sign the message with")
	cmd.Flags().StringVar(&opts.signature, "signature", "", "base64 signature of the message, as output by deployctl sign")
	cmd.Flags().BoolVarP(&opts.wait, "wait", "w", false, "wait for the job to finish")
	cmd.Flags().DurationVar(&opts.waitFor, "wait-timeout", 30*time.Minute, "how long to wait with --wait")
	return cmd
}

func (opts *deployOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.repo == "" || opts.tag == "" || opts.path == "" {
		return newUsageError("--repo, --tag and --path are all required")
	}
	if err := checkExactlyOne([]string{"--key", "--signature"}, opts.keyPath != "", opts.signature != ""); err != nil {
		return err
	}

	message := opts.message
	if message == "" {
		message = fmt.Sprintf("deploy %s at %s (%s)", opts.repo, opts.tag, opts.path)
	}
	signature := opts.signature
	if opts.keyPath != "" {
		var err error
		if signature, err = signMessage(opts.keyPath, message); err != nil {
			return err
		}
	}

	ctx := context.Background()
	id, err := opts.API.Deploy(ctx, transport.DeployRequest{
		Repo:       opts.repo,
		Tag:        opts.tag,
		Path:       opts.path,
		PlainMsg:   message,
		CryptoSign: signature,
	})
	if id != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Job:\t%s\n", id)
	}
	if err != nil {
		return err
	}

	if !opts.wait {
		return nil
	}
	status, err := awaitJob(ctx, opts.API, id, opts.waitFor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Commit:\t%s\nImage:\t%s\n", status.SHA, status.ImageTag)
	return nil
}
