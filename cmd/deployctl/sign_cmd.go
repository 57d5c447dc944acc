package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deploybot/deploybot/pkg/pki"
)

type signOpts struct {
	keyPath string
	message string
}

func newSign() *signOpts {
	return &signOpts{}
}

func (opts *signOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a message with an RSA private key, as deployd expects",
		Example: makeExample(
			"deployctl sign --key deploy.pem --message 'release v1.2.0'",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.keyPath, "key", "k", "", "PEM-encoded RSA private key")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "message to sign")
	return cmd
}

func (opts *signOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.keyPath == "" || opts.message == "" {
		return newUsageError("both --key and --message are required")
	}
	signature, err := signMessage(opts.keyPath, opts.message)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), signature)
	return nil
}

func signMessage(keyPath, message string) (string, error) {
	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return "", errors.Wrap(err, "reading private key")
	}
	key, err := pki.ParsePrivateKey(pemBytes)
	if err != nil {
		return "", errors.Wrapf(err, "parsing private key %s", keyPath)
	}
	return pki.Sign(key, message)
}

func makeExample(examples ...string) string {
	var buf []byte
	for _, ex := range examples {
		buf = append(buf, "  "+ex+"\n"...)
	}
	return string(buf)
}
