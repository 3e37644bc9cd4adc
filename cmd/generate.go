// Package cmd — generate command.
// Generate runs the full pipeline for a single book: capture the reader (or
// read a saved snapshot), extract and normalize the page references, fetch
// the page images, and assemble them into a PDF.
package cmd

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alaroche/bindery/config"
	"github.com/alaroche/bindery/core"
	"github.com/alaroche/bindery/core/assemble"
	"github.com/alaroche/bindery/core/enhance"
	"github.com/alaroche/bindery/core/extract"
	"github.com/alaroche/bindery/core/fetch"
	"github.com/alaroche/bindery/core/normalize"
	"github.com/alaroche/bindery/core/output"
	"github.com/alaroche/bindery/pipeline"
	"github.com/alaroche/bindery/snapshot"
)

// Flag variables.
var (
	flagOutputDir string
	flagName      string
	flagMode      string
	flagEngine    string
	flagSaveHTML  bool
	flagReport    bool
	flagParallel  int
	flagTimeout   time.Duration
	flagAttempts  uint
	flagEnhance   []string
)

var generateCmd = &cobra.Command{
	Use:   "generate <url-or-snapshot>",
	Short: "Generate a PDF book from a reader URL or saved snapshot",
	Long: `Generate captures the reader of a web book, downloads every page image,
and binds the pages into a PDF. A local path instead of a URL re-extracts
from a snapshot saved on an earlier run, without a browser.

Examples:
  bindery generate "https://press.example.com/feuilletage.php?issue=42"
  bindery generate ./mybook/mybook.html --name mybook
  bindery generate "https://..." --mode structured --engine gofpdf
  bindery generate "https://..." --enhance mogrify --enhance -strip --enhance {}`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: current directory)")
	generateCmd.Flags().StringVar(&flagName, "name", "", "Book name (default: derived from the source)")
	generateCmd.Flags().StringVar(&flagMode, "mode", "scan", "Extraction mode: scan or structured")
	generateCmd.Flags().StringVar(&flagEngine, "engine", "", "PDF engine: pdfcpu or gofpdf")
	generateCmd.Flags().BoolVar(&flagSaveHTML, "save_html", true, "Keep the captured reader document in the book directory")
	generateCmd.Flags().BoolVar(&flagReport, "report", false, "Write a JSON run report next to the book directory")
	generateCmd.Flags().IntVar(&flagParallel, "parallel", 0, "Concurrent page fetches")
	generateCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "Per-request fetch timeout")
	generateCmd.Flags().UintVar(&flagAttempts, "attempts", 0, "Fetch attempts per page")
	generateCmd.Flags().StringArrayVar(&flagEnhance, "enhance", nil, "Post-fetch tool argv, one element per flag; {} is the image path")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	source := args[0]
	cfg := cfgManager.Get()

	outputDir := cfg.OutputDir
	if flagOutputDir != "" {
		outputDir = flagOutputDir
	}
	engine := cfg.Engine
	if flagEngine != "" {
		engine = flagEngine
	}
	fetchCfg := cfg.Fetch
	if cmd.Flags().Changed("timeout") {
		fetchCfg.Timeout = flagTimeout
	}
	if cmd.Flags().Changed("attempts") {
		fetchCfg.Attempts = flagAttempts
	}
	if cmd.Flags().Changed("parallel") {
		fetchCfg.Parallelism = flagParallel
	}
	enhanceArgv := cfg.Enhance.Command
	if cmd.Flags().Changed("enhance") {
		enhanceArgv = flagEnhance
	}

	name := flagName
	if name == "" {
		name = deriveName(source)
	}
	name = output.SanitizeName(name)

	extractor, err := selectExtractor(flagMode)
	if err != nil {
		return err
	}
	assembler, err := selectAssembler(engine)
	if err != nil {
		return err
	}

	layout, err := output.New(outputDir)
	if err != nil {
		return fmt.Errorf("initializing output layout: %w", err)
	}

	provider, closeProvider, err := selectProvider(cfg, source)
	if err != nil {
		return err
	}
	defer closeProvider()

	var enhancer core.Enhancer = enhance.Noop{}
	if len(enhanceArgv) > 0 {
		enhancer = enhance.NewCommand(enhanceArgv)
	}

	p, err := pipeline.New(pipeline.Config{
		Provider:     provider,
		Extractor:    extractor,
		Normalizer:   normalize.New(),
		Fetcher:      newFetcher(fetchCfg),
		Enhancer:     enhancer,
		Assembler:    assembler,
		Layout:       layout,
		SaveSnapshot: flagSaveHTML,
		WriteReport:  flagReport,
		Parallelism:  fetchCfg.Parallelism,
		Logger:       slog.Default(),
	})
	if err != nil {
		return err
	}

	res, err := p.Run(cmd.Context(), pipeline.Request{Name: name, Source: source})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "✓ Written: %s (%d pages)\n", res.Document, res.Fetched+res.Skipped)
	return nil
}

// deriveName builds a book name from the source URL or snapshot path.
func deriveName(source string) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		parsed, err := url.Parse(source)
		if err != nil {
			return source
		}
		name := strings.TrimSuffix(filepath.Base(parsed.Path), filepath.Ext(parsed.Path))
		if name == "." || name == "/" || name == "" {
			name = parsed.Host
		}
		// Readers address books through query parameters, so keep them.
		if parsed.RawQuery != "" {
			name += "_" + parsed.RawQuery
		}
		return name
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// selectProvider picks the snapshot provider for the source: a headless
// browser for reader URLs, a plain file read for saved snapshots.
func selectProvider(cfg *config.Config, source string) (core.SnapshotProvider, func() error, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		b, err := snapshot.NewBrowser(browserOptions(cfg.Browser)...)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	}
	return snapshot.NewFile(), func() error { return nil }, nil
}

// browserOptions maps the browser config section onto snapshot options.
func browserOptions(bc config.BrowserCfg) []snapshot.Option {
	var opts []snapshot.Option
	if bc.ChromePath != "" {
		opts = append(opts, snapshot.WithChromePath(bc.ChromePath))
	}
	if bc.Managed {
		opts = append(opts, snapshot.WithManagedBrowser())
	}
	if bc.NoSandbox {
		opts = append(opts, snapshot.WithNoSandbox())
	}
	if bc.Timeout > 0 {
		opts = append(opts, snapshot.WithTimeout(bc.Timeout))
	}
	if bc.PageDelay > 0 {
		opts = append(opts, snapshot.WithPageDelay(bc.PageDelay))
	}
	if bc.SettleDelay > 0 {
		opts = append(opts, snapshot.WithSettleDelay(bc.SettleDelay))
	}
	if bc.ReadySelector != "" {
		opts = append(opts, snapshot.WithReadySelector(bc.ReadySelector))
	}
	if bc.PageCountExpr != "" {
		opts = append(opts, snapshot.WithPageCountExpr(bc.PageCountExpr))
	}
	if bc.PagerExpr != "" {
		opts = append(opts, snapshot.WithPagerExpr(bc.PagerExpr))
	}
	return opts
}

// newFetcher maps the fetch config section onto fetcher options.
func newFetcher(fc config.FetchCfg) *fetch.HTTPFetcher {
	var opts []fetch.Option
	if fc.Timeout > 0 {
		opts = append(opts, fetch.WithTimeout(fc.Timeout))
	}
	if fc.Attempts > 0 {
		opts = append(opts, fetch.WithAttempts(fc.Attempts))
	}
	if fc.RetryDelay > 0 {
		opts = append(opts, fetch.WithRetryDelay(fc.RetryDelay))
	}
	if fc.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(fc.UserAgent))
	}
	return fetch.New(opts...)
}

// selectExtractor creates the appropriate Extractor for the mode.
func selectExtractor(mode string) (core.Extractor, error) {
	switch mode {
	case "scan", "":
		return extract.NewByteScan(), nil
	case "structured":
		return extract.NewStructured(), nil
	default:
		return nil, fmt.Errorf("unknown extraction mode %q (want scan or structured)", mode)
	}
}

// selectAssembler creates the appropriate Assembler for the engine.
func selectAssembler(engine string) (core.Assembler, error) {
	switch engine {
	case "pdfcpu", "":
		return assemble.NewPDFCPU(), nil
	case "gofpdf":
		return assemble.NewGoFPDF(), nil
	default:
		return nil, fmt.Errorf("unknown PDF engine %q (want pdfcpu or gofpdf)", engine)
	}
}
