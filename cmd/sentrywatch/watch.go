package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/alerts"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/config"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/joblogs"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/monitor"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/obs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"
)

type watchFlags struct {
	summaryInterval time.Duration
	jobID           string
	chaosDialFail   float64
	chaosDrop       float64
	chaosDuplicate  float64
}

func newWatchCmd(a *app) *cobra.Command {
	var f watchFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to every live stream and print toasts and summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("chaos-dial-fail") {
				a.cfg.Chaos.DialFailRate = f.chaosDialFail
			}
			if flags.Changed("chaos-drop") {
				a.cfg.Chaos.DropRate = f.chaosDrop
			}
			if flags.Changed("chaos-duplicate") {
				a.cfg.Chaos.DuplicateRate = f.chaosDuplicate
			}
			return runWatch(cmd.Context(), a, f)
		},
	}
	cmd.Flags().DurationVar(&f.summaryInterval, "summary-interval", 30*time.Second, "how often to log a summary (0 disables)")
	cmd.Flags().StringVar(&f.jobID, "job", "", "also stream logs for this job id")
	cmd.Flags().Float64Var(&f.chaosDialFail, "chaos-dial-fail", 0, "probability of failing a dial")
	cmd.Flags().Float64Var(&f.chaosDrop, "chaos-drop", 0, "probability of dropping an inbound frame")
	cmd.Flags().Float64Var(&f.chaosDuplicate, "chaos-duplicate", 0, "probability of duplicating an inbound frame")
	return cmd
}

func runWatch(ctx context.Context, a *app, f watchFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopProfiler, err := startProfiler(a.cfg.Pyroscope)
	if err != nil {
		return err
	}
	defer stopProfiler()

	metrics := obs.NewMetrics(nil)
	toasts := notify.NewQueue(a.cfg.Toasts.QueueSize)
	metrics.WatchDropped("toasts_dropped_total", "Toasts dropped because the presenter fell behind.", toasts.Dropped)

	mon, err := monitor.New(monitor.Options{
		Config:   a.cfg,
		Metrics:  metrics,
		Notifier: toasts,
		Invalidator: notify.InvalidatorFunc(func(keys ...notify.QueryKey) {
			for _, k := range keys {
				logs.Debugf("watch: invalidate %s", k)
			}
		}),
	})
	if err != nil {
		return err
	}
	defer mon.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		toasts.Run(gctx, notify.LogPresenter)
		return nil
	})
	if addr := a.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error { return serveMetrics(gctx, addr) })
	}

	rt := config.NewRuntime(a.cfg)
	a.loader.Watch(gctx, func(loaded config.Loaded) {
		rt.Update(loaded)
		mon.Reload(loaded)
	})

	logConnection(mon.Alerts.Dispatcher)
	logConnection(mon.Health.Dispatcher)
	mon.Alerts.SetCallbacks(alerts.Callbacks{
		OnAlertEvent: func(eventType string, al alerts.Alert) {
			logs.Infof("watch: %s %s severity=%s status=%s", eventType, al.ID, al.Severity, al.Status)
		},
		OnAlertDeleted: func(d alerts.Deleted) {
			logs.Infof("watch: alert_deleted %s", d.ID)
		},
	})
	mon.Start()

	if f.jobID != "" {
		job, err := mon.WatchJob(f.jobID)
		if err != nil {
			return err
		}
		job.SetCallbacks(joblogs.Callbacks{
			OnLog: func(l joblogs.Line) {
				logs.Infof("job %s [%s] %s", f.jobID, l.Level, l.Message)
			},
			OnStatus: func(j joblogs.JobStatus) {
				logs.Infof("job %s status=%s", f.jobID, j.Status)
			},
		})
	}

	g.Go(func() error {
		if f.summaryInterval <= 0 {
			<-gctx.Done()
			return nil
		}
		ticker := time.NewTicker(f.summaryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sys.Shutdown():
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logs.Infof("watch summary (profile=%s)\n%s", rt.Load().Profile.Name, mon.Summary())
			}
		}
	})

	err = g.Wait()
	toasts.Close()
	return err
}

func logConnection(d *dispatch.Dispatcher) {
	name := d.Name()
	d.SetConnectionCallbacks(dispatch.ConnectionCallbacks{
		OnConnect: func() {
			logs.Infof("watch: %s connected", name)
		},
		OnDisconnect: func(err error) {
			if err != nil {
				logs.Warnf("watch: %s disconnected, err: %+v", name, err)
			}
		},
		OnMaxRetriesExhausted: func() {
			logs.Errorf("watch: %s gave up reconnecting", name)
		},
	})
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logs.Infof("watch: serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
