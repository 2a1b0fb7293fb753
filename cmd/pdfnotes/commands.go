package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/local/pdfnotes/internal/batch"
	"github.com/local/pdfnotes/internal/compose"
	"github.com/local/pdfnotes/internal/imagerender"
	"github.com/local/pdfnotes/internal/inspect"
	"github.com/local/pdfnotes/internal/layout"
	"github.com/local/pdfnotes/internal/store"
)

// Default refs when positional arguments are omitted.
const (
	defaultMain   = "b1_skript.pdf"
	defaultInsert = "Template.pdf"
	defaultOutput = "output.pdf"
)

// composeOptions builds compose.Options from config plus command flags.
func (e *env) composeOptions(c *cli.Context) (compose.Options, error) {
	pairing, order := e.cfg.Compose.Pairing, e.cfg.Compose.Order
	if c.IsSet("pairing") {
		pairing = c.String("pairing")
	}
	if c.IsSet("order") {
		order = c.String("order")
	}

	p, err := layout.ParsePairing(pairing)
	if err != nil {
		return compose.Options{}, err
	}
	o, err := layout.ParseOrder(order)
	if err != nil {
		return compose.Options{}, err
	}

	sheet := layout.Sheet{Width: e.cfg.Compose.SheetWidth, Height: e.cfg.Compose.SheetHeight}
	if err := sheet.Validate(); err != nil {
		return compose.Options{}, err
	}

	return compose.Options{
		Sheet:      sheet,
		Pairing:    p,
		Order:      o,
		WorkDir:    e.cfg.Compose.WorkDir,
		Validation: e.cfg.Compose.Validation,
	}, nil
}

func (e *env) composeAction(mode string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() > 3 {
			return fmt.Errorf("%s: expected at most 3 arguments, got %d", mode, c.NArg())
		}
		mainRef := argOr(c, 0, defaultMain)
		insertRef := argOr(c, 1, defaultInsert)
		outputRef := argOr(c, 2, defaultOutput)

		opts, err := e.composeOptions(c)
		if err != nil {
			return err
		}
		svc := compose.New(opts, nil)

		var res *compose.Result
		switch mode {
		case compose.ModeInterleave:
			res, err = svc.Interleave(c.Context, mainRef, insertRef, outputRef)
		case compose.ModeTwoUp:
			res, err = svc.TwoUp(c.Context, mainRef, insertRef, outputRef)
		default:
			res, err = svc.MergeThenTwoUp(c.Context, mainRef, insertRef, outputRef)
		}
		if err != nil {
			return err
		}

		if res.Sheets > 0 {
			fmt.Fprintf(e.stdout, "wrote %s: %d sheets\n", res.Output, res.Sheets)
		} else {
			fmt.Fprintf(e.stdout, "wrote %s: %d pages\n", res.Output, res.Pages)
		}
		return nil
	}
}

func (e *env) batchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("batch: expected one manifest path")
	}
	m, err := batch.LoadManifest(c.Args().First())
	if err != nil {
		return err
	}

	base, err := e.composeOptions(c)
	if err != nil {
		return err
	}

	concurrency := e.cfg.Batch.Concurrency
	if c.IsSet("concurrency") {
		concurrency = c.Int("concurrency")
	}
	redisURL := e.cfg.Batch.StatusRedisURL
	if c.IsSet("status-redis") {
		redisURL = c.String("status-redis")
	}

	status, err := store.Open(redisURL)
	if err != nil {
		return fmt.Errorf("status store: %w", err)
	}
	defer status.Close()

	results, runErr := batch.Run(c.Context, m, &batch.ComposeRunner{Base: base, Publisher: &compose.Publisher{}}, status, concurrency)
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(e.stdout, "%s\tfailed\t%v\n", r.Name, r.Err)
			continue
		}
		fmt.Fprintf(e.stdout, "%s\tdone\t%s\n", r.Name, r.Result.Output)
	}
	return runErr
}

func (e *env) inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("inspect: expected one pdf path")
	}
	rep, err := inspect.Inspect(c.Args().First())
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(e.stdout, "%s: %d pages\n", rep.FilePath, rep.PageCount)
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tWIDTH\tHEIGHT\tFIRST LINE")
	for _, p := range rep.Pages {
		label := p.Label()
		if p.Err != "" {
			label = "error: " + p.Err
		}
		fmt.Fprintf(tw, "%d\t%.0f\t%.0f\t%s\n", p.Index+1, p.Width, p.Height, label)
	}
	return tw.Flush()
}

func (e *env) previewAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("preview: expected <pdf> <out.jpg>")
	}
	color := imagerender.ColorRGB
	if c.Bool("gray") {
		color = imagerender.ColorGray
	}
	opts := imagerender.Options{DPI: c.Int("dpi"), Quality: c.Int("quality"), Color: color}
	if err := imagerender.RenderPageToFile(c.Args().Get(0), c.Int("page"), opts, c.Args().Get(1)); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s\n", c.Args().Get(1))
	return nil
}

func argOr(c *cli.Context, i int, def string) string {
	if v := c.Args().Get(i); v != "" {
		return v
	}
	return def
}
