package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/api"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/poll"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/retry"
	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
)

func newStatusCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch system health over REST",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStatus(ctx, a, follow, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling at the configured interval")
	return cmd
}

func runStatus(ctx context.Context, a *app, follow bool, out io.Writer) error {
	queue := retry.NewQueue(retry.Options{
		MaxRetries:       a.cfg.Retry.MaxRetries,
		BaseDelay:        a.cfg.Retry.BaseDelay,
		MaxDelay:         a.cfg.Retry.MaxDelay,
		IgnoreRetryAfter: a.cfg.Retry.IgnoreRetryAfter,
		OnChange: func(pending []retry.State) {
			for _, p := range pending {
				logs.Infof("status: rate limited, retrying %s in %ds (attempt %d/%d)",
					p.URL, p.SecondsRemaining, p.Attempt, p.MaxAttempts)
			}
		},
	})
	defer queue.Close()

	client, err := api.NewClient(api.Options{
		BaseURL: a.cfg.Server.BaseURL,
		APIKey:  a.cfg.Server.APIKey,
		Retry:   queue,
	})
	if err != nil {
		return err
	}

	settled := make(chan poll.State[api.SystemHealth], 1)
	opt := poll.Options[api.SystemHealth]{
		Fetch:               client.SystemHealth,
		Enabled:             true,
		RetryAttempts:       a.cfg.Poll.RetryAttempts,
		RetryDelay:          a.cfg.Poll.RetryDelay,
		PausePollingOnError: a.cfg.Poll.PauseOnError,
		OnChange: func(st poll.State[api.SystemHealth]) {
			printHealth(out, st)
			select {
			case settled <- st:
			default:
			}
		},
	}
	if follow {
		opt.PollingInterval = a.cfg.Poll.Interval
	}
	fetcher, err := poll.New(opt)
	if err != nil {
		return err
	}
	fetcher.Start()
	defer fetcher.Stop()

	if follow {
		<-ctx.Done()
		return nil
	}
	select {
	case st := <-settled:
		return st.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printHealth(out io.Writer, st poll.State[api.SystemHealth]) {
	if st.Err != nil {
		if st.HasData {
			fmt.Fprintf(out, "%s (stale) error: %v\n", st.Data.Status, st.Err)
			return
		}
		fmt.Fprintf(out, "error: %v\n", st.Err)
		return
	}
	line := st.Data.Status
	if bad := st.Data.Unhealthy(); len(bad) > 0 {
		line += " (unhealthy: " + strings.Join(bad, ", ") + ")"
	}
	fmt.Fprintln(out, line)
}
