package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/falllog/internal/cli/plugins"
	"github.com/ccollicutt/falllog/pkg/analyzer"
	"github.com/ccollicutt/falllog/pkg/config"
	"github.com/ccollicutt/falllog/pkg/metrics"
	"github.com/ccollicutt/falllog/pkg/output"
	"github.com/ccollicutt/falllog/pkg/parser"
	"github.com/ccollicutt/falllog/pkg/publish"
	"github.com/ccollicutt/falllog/pkg/webhook"
)

// SessionOptions holds the flags shared by read and parse.
type SessionOptions struct {
	Output  string
	Verbose bool
	Quiet   bool

	OutputDir   string
	SaveCSV     bool
	CSVExtended bool
	Plot        bool

	RangeG           int
	DefaultTimeScale int64
	MetricsFile      string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

func addSessionFlags(cmd *cobra.Command, opts *SessionOptions) {
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output format (text|json), overrides the config file")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "List every event and line error; include samples in JSON")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Directory for saved CSV files")
	cmd.Flags().BoolVar(&opts.SaveCSV, "save-csv", false, "Save collected samples as CSV")
	cmd.Flags().BoolVar(&opts.CSVExtended, "csv-extended", false, "Add time and g-force columns to the CSV")
	cmd.Flags().BoolVar(&opts.Plot, "plot", false, "Render the saved CSV with the falllog-plot plugin (implies --save-csv)")

	cmd.Flags().IntVar(&opts.RangeG, "range", 0, "Accelerometer full-scale range in g (2|4|8|16)")
	cmd.Flags().Int64Var(&opts.DefaultTimeScale, "default-time-scale", 0, "Sample interval in microseconds when the device reports none")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_data", "When to fire webhook (on_data|always|never)")
}

// loadSessionConfig loads the config file and applies flag overrides.
func loadSessionConfig(ctx context.Context, opts *SessionOptions) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(ctx, Global.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.Output != "" {
		cfg.Output.Format = config.OutputFormat(opts.Output)
	}
	if opts.OutputDir != "" {
		cfg.Output.Directory = opts.OutputDir
	}
	if opts.SaveCSV || opts.Plot {
		cfg.Output.SaveCSV = true
	}
	if opts.CSVExtended {
		cfg.Output.CSVExtended = true
	}
	if opts.Plot {
		cfg.Output.Plot = true
	}
	if opts.RangeG != 0 {
		cfg.Sensor.FullScaleRangeG = opts.RangeG
	}
	if opts.DefaultTimeScale != 0 {
		cfg.Sensor.DefaultTimeScaleMicros = opts.DefaultTimeScale
	}
	if opts.MetricsFile != "" {
		cfg.MetricsFile = opts.MetricsFile
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// pipeline runs parsed sessions through analysis, output and every
// configured collaborator.
type pipeline struct {
	cfg       *config.Config
	opts      *SessionOptions
	analyzer  *analyzer.Analyzer
	formatter output.Formatter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
}

func newPipeline(cmd *cobra.Command, cfg *config.Config, opts *SessionOptions) (*pipeline, error) {
	logger, err := NewLogger(cmd.ErrOrStderr(), Global.LogLevel, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a, err := analyzer.NewAnalyzer(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}

	formatter, err := output.NewFormatter(string(cfg.Output.Format), output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:       cfg,
		opts:      opts,
		analyzer:  a,
		formatter: formatter,
		logger:    logger,
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
	}
	if cfg.MetricsFile != "" {
		p.metrics = metrics.New()
	}
	return p, nil
}

// process parses one session from src and reports it. A cancelled session
// is still reported before the context error is returned.
func (p *pipeline) process(ctx context.Context, source string, src parser.LineSource) (*output.Report, error) {
	startedAt := time.Now()

	res, runErr := parser.Run(ctx, src)
	if res == nil {
		return nil, runErr
	}
	p.logger.Debug("session parsed",
		"source", source,
		"termination", res.Termination,
		"samples", len(res.Samples),
		"line_errors", len(res.Errors))

	analysis, err := p.analyzer.Analyze(context.WithoutCancel(ctx), res)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	report := output.NewReport(output.NewSession(source, Global.ConfigFile, startedAt), res, analysis)

	if p.cfg.Output.SaveCSV && report.HasData() {
		path, err := output.SaveCSV(p.cfg.Output.Directory, startedAt, analysis.Points, p.cfg.Output.CSVExtended)
		if err != nil {
			return nil, err
		}
		report.Artifacts.CSV = path
		p.logger.Info("samples saved", "path", path, "samples", len(analysis.Points))
	}

	report.Session.Duration = time.Since(startedAt)

	if err := p.formatter.Format(ctx, report, p.stdout); err != nil {
		return nil, fmt.Errorf("formatting output: %w", err)
	}

	if runErr != nil {
		return report, runErr
	}

	p.plot(ctx, report)
	p.publish(ctx, report, analysis)

	if p.metrics != nil {
		p.metrics.Record(report)
	}

	return report, nil
}

// plot hands the saved CSV to the plot plugin. Failures are logged.
func (p *pipeline) plot(ctx context.Context, report *output.Report) {
	if !p.cfg.Output.Plot || report.Artifacts.CSV == "" {
		return
	}
	err := plugins.Run(ctx, plugins.PlotCommand, []string{report.Artifacts.CSV}, p.stdout, p.stderr)
	switch {
	case errors.Is(err, plugins.ErrPluginNotFound):
		p.logger.Warn("plot plugin not installed", "plugin", plugins.Prefix+plugins.PlotCommand)
	case err != nil:
		p.logger.Warn("plot failed", "error", err)
	}
}

// publish sends the report to webhooks, MQTT and InfluxDB. Errors are
// logged but don't fail the session.
func (p *pipeline) publish(ctx context.Context, report *output.Report, analysis *analyzer.Analysis) {
	if hooks := collectWebhooks(p.cfg, p.opts); len(hooks) > 0 {
		webhook.NewClient(hooks, p.logger).Dispatch(ctx, report)
	}

	if p.cfg.MQTT != nil {
		if err := publishMQTT(ctx, p.cfg.MQTT, report, p.logger); err != nil {
			p.logger.Warn("mqtt publish failed", "broker", p.cfg.MQTT.Broker, "error", err)
		}
	}

	if p.cfg.InfluxDB != nil && report.HasData() {
		w := publish.NewInfluxWriter(p.cfg.InfluxDB, p.logger)
		if err := w.Write(ctx, report, analysis.Points); err != nil {
			p.logger.Warn("influxdb write failed", "url", p.cfg.InfluxDB.URL, "error", err)
		}
		w.Close()
	}
}

func publishMQTT(ctx context.Context, cfg *config.MQTTConfig, report *output.Report, logger *slog.Logger) error {
	pub, err := publish.NewMQTTPublisher(cfg, logger)
	if err != nil {
		return err
	}
	if err := pub.Connect(ctx); err != nil {
		return err
	}
	defer pub.Close()
	return pub.Publish(ctx, report)
}

// finish writes the metrics textfile and sets the exit code: 1 when any
// session produced no valid data.
func (p *pipeline) finish(reports []*output.Report) error {
	ExitCode = ExitOK
	for _, r := range reports {
		if !r.HasData() {
			ExitCode = ExitNoData
		}
	}

	if p.metrics != nil {
		if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
			return err
		}
		p.logger.Debug("metrics written", "path", p.cfg.MetricsFile)
	}
	return nil
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *SessionOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)

	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnData
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
