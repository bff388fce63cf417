package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"navkit/internal/logging"
	"navkit/internal/model"
	"navkit/internal/routes"
	"navkit/internal/session"
	"navkit/internal/trace"
	"navkit/internal/tui"
	"navkit/internal/web"
)

type options struct {
	routesFile string
	script     string
	output     string
	addr       string
	origin     string
	initial    string
	logFile    string

	json    bool
	report  bool
	verbose bool
	web     bool
	version bool
	update  bool
}

func checkUpdate(w io.Writer, currentVer string, explicit bool) {
	githubTag := &latest.GithubTag{
		Owner:      "navkit",
		Repository: "navkit",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Fprintf(w, "\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Fprintln(w, "👉 Download it from https://github.com/navkit/navkit/releases")
	} else if explicit {
		fmt.Fprintf(w, "✅ You are using the latest version: %s\n", currentVer)
	}
}

func addFlags(f *pflag.FlagSet, opts *options) {
	f.StringVarP(&opts.routesFile, "routes", "R", "", "Load routes from a TOML or YAML file (reloaded on change in web mode)")
	f.StringVarP(&opts.script, "script", "s", "", "Run a navigation script ('-' for stdin) and print the report")
	f.BoolVarP(&opts.json, "json", "j", false, "Output the journal analysis as JSON")
	f.BoolVarP(&opts.report, "report", "r", false, "Print a navigation report (CLI mode)")
	f.StringVarP(&opts.output, "output", "o", "", "Save the report or JSON to the specified file")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging and the raw journal in reports")
	f.BoolVarP(&opts.web, "web", "w", false, "Start Web Mode")
	f.StringVar(&opts.addr, "addr", "localhost:8080", "Listen address for Web Mode")
	f.StringVar(&opts.origin, "origin", session.DefaultOrigin, "Page origin used to decide which links stay in the app")
	f.StringVarP(&opts.initial, "initial", "i", "/", "Initial location")
	f.StringVar(&opts.logFile, "log-file", "", "Write logs to this file")
	f.BoolVarP(&opts.version, "version", "V", false, "Print version information")
	f.BoolVarP(&opts.update, "update", "u", false, "Check for the latest version")
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "navkit [flags]",
		Short: "Client-side navigation lifecycle explorer",
		Long: `navkit runs a client-side navigation session: a route table, a history stack
and the request lifecycle between them (permission, before/after handlers,
history push, completion). Explore it in the terminal, drive it from a script
or serve it over HTTP.`,
		Example: `  navkit                          # Start TUI mode
  navkit -R routes.toml           # TUI with routes from a file
  navkit -s nav.txt               # Run a script and print the report
  navkit -s nav.txt -j -o out.json
  navkit --web --addr :9090       # Web Mode with live route reload`,
		Args:          cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	addFlags(cmd.Flags(), &opts)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, opts options) error {
	out := cmd.OutOrStdout()

	if opts.version {
		fmt.Fprintf(out, "navkit version %s\n", model.Version)
		return nil
	}
	if opts.update {
		checkUpdate(out, model.Version, cmd.Flags().Changed("update"))
		return nil
	}

	batch := opts.script != "" || opts.report || opts.json
	logger, err := logging.New(logging.Options{
		Verbose: opts.verbose,
		Console: true,
		File:    opts.logFile,
		Discard: !opts.web && !batch,
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var reg *prometheus.Registry
	if opts.web {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	sess, err := newSession(opts, logger, reg)
	if err != nil {
		var ce *routes.ConfigError
		if errors.As(err, &ce) && ce.Line > 0 {
			fmt.Fprint(cmd.ErrOrStderr(), ce.Context.String())
		}
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.web:
		return runWebMode(ctx, sess, reg, opts, logger)
	case batch:
		return runBatchMode(ctx, out, cmd.InOrStdin(), sess, opts, logger)
	default:
		return tui.Run(sess)
	}
}

func newSession(opts options, logger *zap.Logger, reg *prometheus.Registry) (*session.Session, error) {
	cfg := session.Config{
		RoutesFile: opts.routesFile,
		Handlers:   session.DemoHandlers(),
		Initial:    opts.initial,
		Origin:     opts.origin,
		Logger:     logger,
	}
	if opts.routesFile == "" {
		cfg.Routes = session.DemoRoutes()
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return session.New(cfg)
}

// runBatchMode runs the script, if any, and writes the report or JSON.
func runBatchMode(ctx context.Context, out io.Writer, stdin io.Reader, sess *session.Session, opts options, logger *zap.Logger) error {
	var scriptErr error
	if opts.script != "" {
		in := stdin
		if opts.script != "-" {
			f, err := os.Open(opts.script)
			if err != nil {
				return fmt.Errorf("opening script: %w", err)
			}
			defer f.Close()
			in = f
		}

		commands, errs := trace.NewParser().Parse(in)
		scriptErr = trace.NewExecutor(sess, logger).Run(ctx, commands)
		if err := <-errs; err != nil {
			return err
		}
		if scriptErr != nil {
			// handler failures are part of the story the report tells
			logger.Warn("script finished with errors", zap.Error(scriptErr))
		}
	}

	if err := sess.Settle(ctx); err != nil {
		logger.Warn("session did not settle cleanly", zap.Error(err))
	}
	result := sess.Analyze()

	var content []byte
	if opts.json {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		content = append(data, '\n')
	} else {
		content = []byte(trace.GenerateReport(result, opts.verbose))
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, content, 0o644); err != nil {
			return fmt.Errorf("writing report to %s: %w", opts.output, err)
		}
		fmt.Fprintf(out, "Report saved to %s\n", opts.output)
		return nil
	}
	_, err := out.Write(content)
	return err
}

// runWebMode serves the session and, with a route file, reloads it on change.
func runWebMode(ctx context.Context, sess *session.Session, reg *prometheus.Registry, opts options, logger *zap.Logger) error {
	srv := web.NewServer(sess, web.WithLogger(logger), web.WithGatherer(reg))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, opts.addr)
	})
	if opts.routesFile != "" {
		g.Go(func() error {
			return routes.Watch(ctx, sess.Table(), opts.routesFile, session.DemoHandlers(), logger)
		})
	}

	fmt.Printf("Starting navkit web server at http://%s\n", opts.addr)
	return g.Wait()
}
