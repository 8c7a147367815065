package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/use-agent/slidepdf/config"
	"github.com/use-agent/slidepdf/engine"
	"github.com/use-agent/slidepdf/fetcher"
	"github.com/use-agent/slidepdf/filter"
	"github.com/use-agent/slidepdf/pipeline"
)

var (
	outputPath     string
	minWidth       int
	minHeight      int
	trimLeading    int
	trimTrailing   int
	allowedDomains []string
	useBrowser     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <article-url>",
	Short: "Download an article's slides and write them to a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	d := filter.Defaults()
	convertCmd.Flags().StringVarP(&outputPath, "output", "o", pipeline.DefaultFilename, "output PDF path")
	convertCmd.Flags().IntVar(&minWidth, "min-width", d.MinWidth, "minimum slide width in pixels")
	convertCmd.Flags().IntVar(&minHeight, "min-height", d.MinHeight, "minimum slide height in pixels")
	convertCmd.Flags().IntVar(&trimLeading, "trim-leading", d.TrimLeading, "images to drop from the start")
	convertCmd.Flags().IntVar(&trimTrailing, "trim-trailing", d.TrimTrailing, "images to drop from the end")
	convertCmd.Flags().StringSliceVar(&allowedDomains, "allowed-domain", d.AllowedDomains, "host substrings an image URL must contain")
	convertCmd.Flags().BoolVar(&useBrowser, "browser", false, "fall back to headless Chromium for the article page")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	}

	settings := filter.Defaults()
	settings.MinWidth = minWidth
	settings.MinHeight = minHeight
	settings.TrimLeading = trimLeading
	settings.TrimTrailing = trimTrailing
	settings.AllowedDomains = allowedDomains

	cfg := config.Load()
	httpEngine := engine.NewHTTPEngine(engine.HTTPOptions{
		MaxBody:      cfg.Fetch.MaxBody,
		MaxRedirects: cfg.Fetch.MaxRedirects,
	})
	defer httpEngine.Close()

	var htmlEngine engine.Engine = httpEngine
	if useBrowser || cfg.Browser.Enabled {
		rodEngine, err := engine.NewRodEngine(engine.BrowserOptions{
			Headless:  cfg.Browser.Headless,
			NoSandbox: cfg.Browser.NoSandbox,
			Bin:       cfg.Browser.Bin,
			Proxy:     cfg.Browser.Proxy,
			Stealth:   cfg.Browser.Stealth,
		})
		if err != nil {
			return err
		}
		defer rodEngine.Close()
		htmlEngine = engine.NewDispatcher(httpEngine, rodEngine)
	}

	f := fetcher.New(htmlEngine, httpEngine, fetcher.Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
	})
	p := pipeline.New(f, pipeline.Options{
		Concurrency:   cfg.Download.Concurrency,
		RatePerSecond: cfg.Download.RatePerSecond,
		Burst:         cfg.Download.Burst,
	})

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	var final pipeline.Event
	for ev := range p.Stream(ctx, pipeline.Request{URL: args[0], Filters: settings}) {
		bar.Describe(describe(ev))
		_ = bar.Set(ev.Progress)
		final = ev
	}

	switch final.Stage {
	case pipeline.StageCompleted:
	case pipeline.StageError:
		_ = bar.Exit()
		fmt.Fprintln(os.Stderr)
		return fmt.Errorf("%s (%s)", final.Error, final.ErrorKind)
	default:
		_ = bar.Exit()
		return errors.New("interrupted")
	}

	pdf, err := base64.StdEncoding.DecodeString(final.PDFBase64)
	if err != nil {
		return fmt.Errorf("decode pdf: %w", err)
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(outputPath, pdf, 0o644); err != nil {
		return err
	}

	printSummary(outputPath, final.PageCount, len(pdf))
	return nil
}

func describe(ev pipeline.Event) string {
	stage := color.CyanString("%-18s", ev.Stage)
	if ev.Stage == pipeline.StageDownloadingImages && ev.Total > 0 {
		return fmt.Sprintf("%s %d/%d (kept %d)", stage, ev.Current, ev.Total, ev.Kept)
	}
	return stage
}
