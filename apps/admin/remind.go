package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
)

func (cli *commandLine) remind(ctx context.Context, mode reminder.Mode) error {
	summary, err := cli.job.Run(ctx, mode)
	fmt.Fprintf(cli.out, "cutoff %s: %d qualified, %d sent, %d skipped, %d failed\n",
		summary.Cutoff.Format("2006-01-02 15:04:05 MST"), summary.Qualified, summary.Sent, summary.Skipped, summary.Failed)
	for _, res := range summary.Results {
		fmt.Fprintf(cli.out, "  %s\t%s\t%s\t%s\n", res.UserID, res.Status, res.Recipient, res.Detail)
	}
	return err
}

func (cli *commandLine) crypt(op, val string) error {
	var out string
	var err error
	if op == "encrypt" {
		out, err = cli.codec.Encrypt(val)
	} else {
		out, err = cli.codec.Decrypt(val)
	}
	if err != nil {
		return errors.Wrap(err, op)
	}
	fmt.Fprintln(cli.out, out)
	return nil
}

func (cli *commandLine) genKey() error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return errors.Wrap(err, "generating key")
	}
	fmt.Fprintln(cli.out, hex.EncodeToString(key))
	return nil
}
