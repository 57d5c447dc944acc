package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type identityOpts struct {
	*rootOpts
}

func newIdentity(parent *rootOpts) *identityOpts {
	return &identityOpts{rootOpts: parent}
}

func (opts *identityOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Display the SSH public key deployd clones with",
		RunE:  opts.RunE,
	}
}

func (opts *identityOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	key, err := opts.API.Identity(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), key.Key)
	fmt.Fprintln(cmd.OutOrStdout(), key.Fingerprints["md5"])
	fmt.Fprintln(cmd.OutOrStdout(), key.Fingerprints["sha256"])
	return nil
}
