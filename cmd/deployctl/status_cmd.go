package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deploybot/deploybot/pkg/job"
)

type statusOpts struct {
	*rootOpts
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job id>",
		Short: "Show the status of a deploy job",
		RunE:  opts.RunE,
	}
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected exactly one job id")
	}
	status, err := opts.API.DeployStatus(context.Background(), job.ID(args[0]))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "STATUS\t%s\n", status.StatusString)
	if status.StatusString == job.StatusFailed || status.StatusString == job.StatusSucceeded {
		fmt.Fprintf(w, "CODE\t%d\n", status.Code)
	}
	if status.SHA != "" {
		fmt.Fprintf(w, "COMMIT\t%s\n", status.SHA)
	}
	if status.ImageTag != "" {
		fmt.Fprintf(w, "IMAGE\t%s\n", status.ImageTag)
	}
	if status.Err != "" {
		fmt.Fprintf(w, "ERROR\t%s\n", status.Err)
	}
	return w.Flush()
}
