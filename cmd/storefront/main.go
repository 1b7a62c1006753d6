// Package main provides the storefront CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/storefront/internal/app"
	"github.com/joss/storefront/internal/audit"
	"github.com/joss/storefront/internal/config"
	"github.com/joss/storefront/internal/credential"
	"github.com/joss/storefront/internal/gateway"
	"github.com/joss/storefront/internal/lifecycle"
	"github.com/joss/storefront/internal/logging"
	"github.com/joss/storefront/internal/metrics"
	"github.com/joss/storefront/internal/render"
	"github.com/joss/storefront/internal/runtime"
)

var version = "0.1.0"

// cli carries everything a command needs. It is built once per process in
// the root command's PersistentPreRunE.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	pretty bool
	asJSON bool
	apiURL string

	shutdown *runtime.ShutdownManager
	metrics  *metrics.Metrics
	creds    *credential.SQLiteStore
	journal  *audit.Store
	audit    *audit.Logger
	gw       *gateway.Client
	app      *app.App
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		shutdown: runtime.NewShutdownManager(runtime.DefaultShutdownTimeout),
		metrics:  metrics.Global(),
	}

	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if serr := c.shutdown.Shutdown(); serr != nil {
		logging.New("main").Warn("shutdown", nil, serr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", lifecycle.Message(err))
		return 1
	}
	return 0
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "storefront",
		Short: "Storefront client: browse products, manage your cart, place orders",
		Long: `storefront talks to a storefront API and keeps your session between runs.

Use 'storefront tui' for the interactive shop.
Configure the API with --api or STOREFRONT_API_URL.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	rootCmd.PersistentFlags().BoolVar(&c.pretty, "pretty", true, "Pretty print output (default when stdout is a terminal)")
	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&c.apiURL, "api", "", "Storefront API base URL")

	rootCmd.AddGroup(
		&cobra.Group{ID: "shop", Title: "Shopping:"},
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "runtime", Title: "Runtime:"},
	)

	for _, cmd := range []*cobra.Command{c.productsCmd(), c.cartCmd(), c.checkoutCmd(), c.ordersCmd()} {
		cmd.GroupID = "shop"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{c.loginCmd(), c.registerCmd(), c.logoutCmd(), c.whoamiCmd()} {
		cmd.GroupID = "account"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{c.statusCmd(), c.doctorCmd(), c.historyCmd(), c.tuiCmd()} {
		cmd.GroupID = "runtime"
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// setup wires configuration, storage, the gateway and the app.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	env := config.Env()
	logging.Configure(env.LogLevel, c.stderr)

	if !cmd.Flags().Changed("pretty") {
		c.pretty = isTerminal(c.stdout) && !env.NoColor
	}
	color.NoColor = !c.pretty
	if c.apiURL == "" {
		c.apiURL = env.APIURL
	}

	paths := config.GetPaths()
	if err := config.EnsureDir(paths.Data); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	creds, err := credential.OpenSQLite(paths.CredentialDB)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	c.creds = creds
	c.shutdown.RegisterCloser("credentials", creds)

	opts := []audit.LoggerOption{}
	if journal, err := audit.OpenStore(paths.AuditDB); err != nil {
		logging.New("main").Warn("journal_unavailable", map[string]interface{}{"path": paths.AuditDB}, err)
	} else {
		c.journal = journal
		c.shutdown.RegisterCloser("journal", journal)
		opts = append(opts, audit.WithStore(journal))
	}

	c.gw = gateway.New(gateway.Options{
		BaseURL: c.apiURL,
		Timeout: env.Timeout,
		Rate:    env.Rate,
		Metrics: c.metrics,
	})
	c.app = app.New(app.Deps{
		Gateway: c.gw,
		Vault:   credential.NewVault(creds),
		Metrics: c.metrics,
	})

	if c.app.IsAuthenticated() {
		opts = append(opts, audit.WithUser(c.app.DisplayName()))
	}
	c.audit = audit.NewLogger(opts...)

	stop := c.shutdown.ListenForSignals()
	c.shutdown.Register("signals", func(context.Context) error {
		stop()
		return nil
	})
	return nil
}

// ctx is cancelled on SIGINT/SIGTERM.
func (c *cli) ctx() context.Context {
	return c.shutdown.Context()
}

// track runs fn as one audited operation.
func (c *cli) track(category audit.Category, op string, fn func(ctx context.Context) error) error {
	ctx := c.ctx()
	return c.audit.Track(category, op, func() error { return fn(ctx) })
}

// emit writes v as JSON under --json, otherwise the rendered text.
func (c *cli) emit(v any, text string) error {
	if c.asJSON {
		out, err := render.JSON(v)
		if err != nil {
			return err
		}
		text = out
	}
	_, err := io.WriteString(c.stdout, text)
	return err
}

func (c *cli) renderer() *render.Renderer {
	return render.New(c.pretty)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storefront %s\n", version)
		},
	}
}
