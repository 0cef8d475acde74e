package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/a11yscan/internal/model"
	"github.com/spf13/cobra"
)

// NewResumeCmd creates the resume command.
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue sessions interrupted by a crash or restart",
		Long: `Resume reloads every session that was running or paused when a previous
a11yscan process ended and continues it.

Scan sessions continue at the next unprocessed page; pages that were in
flight are scanned again. Paused scans stay paused unless --paused is
given. Discovery sessions that were interrupted longer ago than
--stale-after are failed instead of resumed.

Press Ctrl+C to stop waiting. The sessions keep their state and can be
resumed again.`,
		Args: cobra.NoArgs,
		RunE: runResumeCmd,
	}

	cmd.Flags().Bool("paused", false,
		"Also resume paused scan sessions")
	cmd.Flags().Duration("stale-after", 0,
		"Age after which an interrupted discovery is failed (default 24h)")
	return cmd
}

// runResumeCmd executes the resume command.
func runResumeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildBaseConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.NoDB {
		return errNoDatabase
	}
	resumePaused, err := cmd.Flags().GetBool("paused")
	if err != nil {
		return err
	}
	staleAfter, err := cmd.Flags().GetDuration("stale-after")
	if err != nil {
		return err
	}
	if staleAfter > 0 {
		cfg.StaleDiscoveryAfter = staleAfter
	}

	// An interrupt only stops waiting; the engine shuts down without
	// changing session states.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	sub := a.bus.Subscribe("", 256)
	followed := a.progress.follow(sub)
	defer func() {
		sub.Close()
		<-followed
	}()

	ids, err := a.engine.Recover(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No interrupted sessions.")
		return nil
	}

	for _, id := range ids {
		s, err := a.engine.Get(ctx, id)
		if err != nil {
			return err
		}
		if s.Status != model.StatusPaused {
			continue
		}
		if !resumePaused {
			fmt.Fprintf(out, "Session %s is paused (use --paused to resume it)\n", id)
			continue
		}
		if err := a.engine.ResumeScan(ctx, id); err != nil {
			return fmt.Errorf("failed to resume %s: %w", id, err)
		}
	}

	fmt.Fprintf(out, "Resumed sessions (%d):\n\n", len(ids))
	for _, id := range ids {
		s, err := a.engine.Wait(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s  %-9s  %s\n", s.ID, s.Kind, a.progress.statusText(s.Status))
	}
	fmt.Fprintln(out, "\nUse 'a11yscan sessions <id>' to show a report.")
	return nil
}
