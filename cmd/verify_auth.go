package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatgraph-poc/server/internal/azauth"
)

var errAuthFailed = errors.New("azure authentication failed")

var verifyAuthCmd = &cobra.Command{
	Use:   "verify-auth",
	Short: "Check that the default Azure credential can list subscriptions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		lister, err := newDefaultLister()
		return verifyAuth(ctx, cmd.OutOrStdout(), lister, err)
	},
}

func newDefaultLister() (azauth.SubscriptionLister, error) {
	cred, err := azauth.NewDefaultCredential()
	if err != nil {
		return nil, err
	}
	return azauth.NewSubscriptionLister(cred)
}

// verifyAuth prints the outcome and returns errAuthFailed so the process exits non-zero.
func verifyAuth(ctx context.Context, out io.Writer, lister azauth.SubscriptionLister, setupErr error) error {
	var id string
	err := setupErr
	if err == nil {
		id, err = azauth.Verify(ctx, lister)
	}
	fmt.Fprintln(out, azauth.VerifyMessage(id, err))
	if err != nil {
		return errAuthFailed
	}
	return nil
}
