package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/incremental"
	"git.home.luguber.info/inful/incremental/internal/config"
	"git.home.luguber.info/inful/incremental/internal/logfields"
	"git.home.luguber.info/inful/incremental/internal/metrics"
)

// Global carries per-invocation state shared by all commands.
type Global struct {
	Logger *slog.Logger
	RunID  string
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
}

func (g *Global) stdout() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) stderr() io.Writer {
	if g.Err == nil {
		return os.Stderr
	}
	return g.Err
}

func (g *Global) stdin() io.Reader {
	if g.In == nil {
		return os.Stdin
	}
	return g.In
}

// CLI definition & global flags. Flags override values from the configuration file.
type CLI struct {
	Config       string           `short:"c" help:"Configuration file path (default: .incremental.yaml, optional)"`
	Verbose      bool             `short:"v" help:"Enable verbose logging"`
	Version      kong.VersionFlag `name:"version" help:"Show version and exit"`
	Namespace    string           `short:"n" help:"Build target namespace"`
	Mode         string           `short:"m" help:"Change detection mode (timestamp|source-control)"`
	TrackingFile string           `name:"tracking-file" help:"Tracking file path, relative to the root"`
	Root         string           `help:"Directory relative paths are resolved against (default: working directory)"`
	Store        string           `help:"Tracking store (json|sqlite)"`
	GitBackend   string           `name:"git-backend" help:"Git backend for source-control mode (cli|native)"`
	MetricsFile  string           `name:"metrics-file" help:"Write Prometheus metrics to this file (textfile collector format)"`

	Check    CheckCmd    `cmd:"" help:"Report which files changed since the last recorded baseline"`
	Finalize FinalizeCmd `cmd:"" help:"Record the baseline for the namespace"`
	Status   StatusCmd   `cmd:"" help:"List the baselines stored in the tracking file"`
	Triggers TriggersCmd `cmd:"" help:"List the configured trigger commands (they are not executed)"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	level := parseLogLevel(c.Verbose)
	logger := slog.New(slog.NewTextHandler(g.stderr(), &slog.HandlerOptions{Level: level}))
	if g.RunID != "" {
		logger = logger.With(logfields.RunID(g.RunID))
	}
	g.Logger = logger
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honours --verbose first, then INCREMENTAL_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("INCREMENTAL_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// configPath returns --config, falling back to config.DefaultPath.
func (c *CLI) configPath() string {
	if c.Config == "" {
		return config.DefaultPath
	}
	return c.Config
}

// loadConfig reads the configuration file and applies flag overrides. The default
// file may be absent; a file named with --config must exist.
func (c *CLI) loadConfig() (*config.Config, error) {
	path := c.configPath()
	cfg, err := config.Load(path, c.Config != "")
	if err != nil {
		return nil, err
	}

	// A root from the file is relative to the file itself.
	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{c.Namespace, &cfg.Namespace},
		{c.Mode, &cfg.Mode},
		{c.TrackingFile, &cfg.TrackingFile},
		{c.Root, &cfg.Root},
		{c.Store, &cfg.Store},
		{c.GitBackend, &cfg.GitBackend},
		{c.MetricsFile, &cfg.MetricsFile},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.dst = o.flag
		}
	}
	return cfg, nil
}

// session is a tracker plus the metrics registry that observes it.
type session struct {
	tracker     *incremental.Tracker
	registry    *prom.Registry
	metricsFile string
	logger      *slog.Logger
}

func openSession(g *Global, c *CLI) (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &session{metricsFile: cfg.MetricsFile, logger: logger}
	opts := incremental.Options{
		Namespace:    cfg.Namespace,
		Mode:         incremental.Mode(cfg.Mode),
		TrackingFile: cfg.TrackingFile,
		Root:         cfg.Root,
		Triggers:     cfg.Triggers,
		StoreKind:    cfg.Store,
		GitBackend:   cfg.GitBackend,
		Logger:       logger,
	}
	if s.metricsFile != "" {
		s.registry = prom.NewRegistry()
		opts.Recorder = metrics.NewPrometheusRecorder(s.registry)
	}

	tracker, err := incremental.New(opts)
	if err != nil {
		s.flushMetrics()
		return nil, err
	}
	s.tracker = tracker
	return s, nil
}

// flushMetrics writes the textfile when configured. Failures are logged only, the
// command result does not depend on them.
func (s *session) flushMetrics() {
	if s.registry == nil {
		return
	}
	if err := metrics.WriteTextfile(s.metricsFile, s.registry); err != nil {
		s.logger.Warn("Failed to write metrics file", logfields.Path(s.metricsFile), logfields.Error(err))
	}
}
