package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/mgrist/acm-roster/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "acmroster",
		Short: "Query an ACM chapter's membership roster",
		Long: `acmroster logs in to the ACM chapter administration panel, downloads the
roster export and answers questions about members. Configuration comes from
ACMROSTER_* environment variables; the password is prompted for when
ACMROSTER_PASSWORD is not set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.AddCommand(
		newMembersCmd(a),
		newMemberCmd(a),
		newStatsCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return root
}
