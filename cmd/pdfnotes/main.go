package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	cfgpkg "github.com/local/pdfnotes/internal/config"
	"github.com/local/pdfnotes/internal/compose"
	logpkg "github.com/local/pdfnotes/internal/logger"
	"github.com/local/pdfnotes/internal/metrics"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(stdout, stderr)
	if err := app.RunContext(ctx, args); err != nil {
		log.Error().Err(err).Msg("pdfnotes failed")
		fmt.Fprintf(stderr, "pdfnotes: %v\n", err)
		logpkg.Close()
		return 1
	}
	logpkg.Close()
	return 0
}

// env is the state shared by commands after Before has run.
type env struct {
	cfg    cfgpkg.Config
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout, stderr io.Writer) *cli.App {
	e := &env{stdout: stdout, stderr: stderr}
	return &cli.App{
		Name:            "pdfnotes",
		Usage:           "interleave lecture slides with a notes template, or lay them out 2-up",
		Version:         version,
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		// errors are reported by run, never by os.Exit inside the library
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file to load", Value: ".env"},
			&cli.Float64Flag{Name: "sheet-width", Usage: "2-up sheet width in points (SHEET_WIDTH)"},
			&cli.Float64Flag{Name: "sheet-height", Usage: "2-up sheet height in points (SHEET_HEIGHT)"},
			&cli.StringFlag{Name: "work-dir", Usage: "directory for temp files (WORK_DIR)"},
			&cli.StringFlag{Name: "validation", Usage: "PDF validation: relaxed or strict (PDF_VALIDATION)"},
			&cli.StringFlag{Name: "metrics-textfile", Usage: "write metrics here on exit (METRICS_TEXTFILE)"},
		},
		Before: e.setup,
		After:  e.teardown,
		Action: e.composeAction(compose.ModeMergeThenTwoUp),
		Commands: []*cli.Command{
			{
				Name:      compose.ModeMergeThenTwoUp,
				Usage:     "interleave, then place each page and the template page side by side",
				ArgsUsage: "[main] [insert] [output]",
				Action:    e.composeAction(compose.ModeMergeThenTwoUp),
			},
			{
				Name:      compose.ModeInterleave,
				Aliases:   []string{"merge"},
				Usage:     "follow every main page with the first insert page",
				ArgsUsage: "[main] [insert] [output]",
				Action:    e.composeAction(compose.ModeInterleave),
			},
			{
				Name:      compose.ModeTwoUp,
				Aliases:   []string{"2up"},
				Usage:     "place main and insert pages side by side on landscape sheets",
				ArgsUsage: "[main] [insert] [output]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pairing", Usage: "template or pairwise (PAIRING)"},
					&cli.StringFlag{Name: "order", Usage: "forward or reverse (ORDER)"},
				},
				Action: e.composeAction(compose.ModeTwoUp),
			},
			{
				Name:      "batch",
				Usage:     "run the jobs of a YAML manifest",
				ArgsUsage: "<manifest.yaml>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "concurrency", Aliases: []string{"c"}, Usage: "jobs in flight (BATCH_CONCURRENCY)"},
					&cli.StringFlag{Name: "status-redis", Usage: "redis URL for job status (STATUS_REDIS_URL)"},
				},
				Action: e.batchAction,
			},
			{
				Name:      "inspect",
				Usage:     "print page count, page sizes and the first text line of each page",
				ArgsUsage: "<pdf>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print the report as JSON"},
				},
				Action: e.inspectAction,
			},
			{
				Name:      "preview",
				Usage:     "render one page to JPEG",
				ArgsUsage: "<pdf> <out.jpg>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: 1, Usage: "1-based page number"},
					&cli.IntFlag{Name: "dpi", Value: 72, Usage: "render resolution"},
					&cli.IntFlag{Name: "quality", Value: 85, Usage: "JPEG quality 1-100"},
					&cli.BoolFlag{Name: "gray", Usage: "render in grayscale"},
				},
				Action: e.previewAction,
			},
		},
	}
}

// setup loads configuration, applies global flag overrides and starts
// logging and metrics.
func (e *env) setup(c *cli.Context) error {
	cfgpkg.LoadDotEnv(c.String("env-file"))
	e.cfg = cfgpkg.FromEnv()

	if c.IsSet("sheet-width") {
		e.cfg.Compose.SheetWidth = c.Float64("sheet-width")
	}
	if c.IsSet("sheet-height") {
		e.cfg.Compose.SheetHeight = c.Float64("sheet-height")
	}
	if c.IsSet("work-dir") {
		e.cfg.Compose.WorkDir = c.String("work-dir")
	}
	if c.IsSet("validation") {
		e.cfg.Compose.Validation = c.String("validation")
	}
	if c.IsSet("metrics-textfile") {
		e.cfg.Metrics.Textfile = c.String("metrics-textfile")
	}

	if err := logpkg.Init(logpkg.Options{
		Level:        e.cfg.Logging.Level,
		Pretty:       e.cfg.Logging.Pretty,
		File:         e.cfg.Logging.File,
		MaxSizeMB:    e.cfg.Logging.MaxSizeMB,
		MaxBackups:   e.cfg.Logging.MaxBackups,
		MaxAgeDays:   e.cfg.Logging.MaxAgeDays,
		Compress:     e.cfg.Logging.Compress,
		Console:      e.stderr,
		SendToAxiom:  e.cfg.Axiom.Send && e.cfg.Axiom.APIKey != "",
		AxiomAPIKey:  e.cfg.Axiom.APIKey,
		AxiomOrgID:   e.cfg.Axiom.OrgID,
		AxiomDataset: e.cfg.Axiom.Dataset,
		AxiomFlush:   e.cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintf(e.stderr, "pdfnotes: logger init: %v\n", err)
	}
	metrics.Init()

	if e.cfg.Compose.WorkDir != "" {
		if err := os.MkdirAll(e.cfg.Compose.WorkDir, 0o755); err != nil {
			return fmt.Errorf("work dir %s: %w", e.cfg.Compose.WorkDir, err)
		}
	}
	compose.CleanupTemps(e.cfg.Compose.WorkDir, e.cfg.Compose.TempMaxAge)
	return nil
}

func (e *env) teardown(c *cli.Context) error {
	if err := metrics.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
		log.Warn().Err(err).Str("path", e.cfg.Metrics.Textfile).Msg("metrics textfile not written")
	}
	return nil
}
