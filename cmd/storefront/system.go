package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/storefront/internal/audit"
	"github.com/joss/storefront/internal/config"
	"github.com/joss/storefront/internal/logging"
	"github.com/joss/storefront/internal/metrics"
	"github.com/joss/storefront/internal/render"
	"github.com/joss/storefront/internal/selftest"
	"github.com/joss/storefront/internal/tui"
)

// health probes the credential store, the journal and the API.
func (c *cli) health() *selftest.Checker {
	checker := selftest.New(selftest.DefaultSlow, config.Env().Timeout)
	checker.Add("credentials", c.creds.Ping)
	if c.journal != nil {
		checker.Add("journal", c.journal.Ping)
	}
	checker.Add("api", func(ctx context.Context) error {
		_, err := c.gw.ListProducts(ctx)
		return err
	})
	return checker
}

func (c *cli) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the local stores and API reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := c.health().Check(c.ctx())
			if err := c.emit(status, status.Summary(c.pretty)); err != nil {
				return err
			}
			if !status.Healthy() {
				return fmt.Errorf("client is %s", status.Status)
			}
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show client status without contacting the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			view := render.StatusView{
				API:        c.gw.BaseURL(),
				Credential: c.creds.Path(),
				Session:    c.app.Session().Snapshot(),
				Cart:       c.app.Cart().Snapshot(),
				Metrics:    c.metrics.Snapshot(),
			}
			return c.emit(view, c.renderer().Status(view))
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var (
		limit    int
		category string
		errsOnly bool
		stats    bool
		prune    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent activity from the command journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.journal == nil {
				return fmt.Errorf("command journal unavailable at %s", config.GetPaths().AuditDB)
			}
			ctx := c.ctx()
			out := render.NewAudit(c.stdout)

			switch {
			case prune > 0:
				n, err := c.journal.Prune(ctx, prune)
				if err != nil {
					return err
				}
				return c.emit(map[string]int64{"pruned": n}, fmt.Sprintf("Pruned %d event(s)\n", n))

			case stats:
				s, err := c.journal.Stats(ctx)
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.emit(s, "")
				}
				out.Stats(s)
				return nil

			case errsOnly:
				events, err := c.journal.Errors(ctx, limit)
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.emit(events, "")
				}
				out.Events(events)
				return nil
			}

			events, err := c.journal.Query(ctx, audit.QueryFilter{
				Category: audit.Category(category),
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.emit(events, "")
			}
			out.Events(events)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only this category (session, cart, catalog, orders, system)")
	cmd.Flags().BoolVar(&errsOnly, "errors", false, "Only failed operations")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show aggregate statistics")
	cmd.Flags().IntVar(&prune, "prune", 0, "Keep only the newest N events")
	return cmd
}

func (c *cli) tuiCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr != "" {
				srv := metrics.NewServer(metricsAddr, c.metrics)
				srv.Handle("/healthz", c.health().Handler())
				if err := srv.Start(); err != nil {
					return fmt.Errorf("metrics server: %w", err)
				}
				logging.New("main").Info("metrics_listening", map[string]interface{}{"addr": srv.Addr()})
				c.shutdown.Register("metrics", srv.Stop)
			}

			return c.audit.Track(audit.CategorySystem, "tui", func() error {
				return tui.Run(c.ctx(), tui.Options{
					App:     c.app,
					Metrics: c.metrics,
					Audit:   c.audit,
					Timeout: config.Env().Timeout,
				})
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the TUI runs")
	return cmd
}

