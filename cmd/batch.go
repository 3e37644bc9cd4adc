package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alaroche/bindery/core"
	"github.com/alaroche/bindery/core/enhance"
	"github.com/alaroche/bindery/core/normalize"
	"github.com/alaroche/bindery/core/output"
	"github.com/alaroche/bindery/crawl"
	"github.com/alaroche/bindery/pipeline"
	"github.com/alaroche/bindery/snapshot"
)

// Batch-specific flag variables.
var (
	flagBaseURL string
	flagMarker  string
	flagDelay   time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <catalog-url-or-snapshot>",
	Short: "Generate a PDF book for every reader linked from a catalog page",
	Long: `Batch fetches a catalog page (or reads a saved copy from disk), collects
the reader links it carries, and runs the generate pipeline for each one in
order. Runs pause before every book to pace requests toward the publisher.
A book that fails is reported and the batch moves on.

Books are named book_1..book_N in catalog order.

Examples:
  bindery batch "https://press.example.com/archives.php"
  bindery batch ./archives.html --base_url "https://press.example.com"
  bindery batch "https://press.example.com/archives.php" --marker "feuilletage.php?issue=" --delay 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: current directory)")
	batchCmd.Flags().StringVar(&flagMode, "mode", "scan", "Extraction mode: scan or structured")
	batchCmd.Flags().StringVar(&flagEngine, "engine", "", "PDF engine: pdfcpu or gofpdf")
	batchCmd.Flags().BoolVar(&flagSaveHTML, "save_html", true, "Keep captured reader documents in the book directories")
	batchCmd.Flags().BoolVar(&flagReport, "report", false, "Write a JSON run report next to each book directory")
	batchCmd.Flags().IntVar(&flagParallel, "parallel", 0, "Concurrent page fetches")
	batchCmd.Flags().StringArrayVar(&flagEnhance, "enhance", nil, "Post-fetch tool argv, one element per flag; {} is the image path")
	batchCmd.Flags().StringVar(&flagBaseURL, "base_url", "", "Base for resolving relative reader links (default: the catalog URL)")
	batchCmd.Flags().StringVar(&flagMarker, "marker", "", "Substring that identifies reader links")
	batchCmd.Flags().DurationVar(&flagDelay, "delay", 0, "Pause before each book")
}

func runBatch(cmd *cobra.Command, args []string) error {
	catalogURL := args[0]
	cfg := cfgManager.Get()

	outputDir := cfg.OutputDir
	if flagOutputDir != "" {
		outputDir = flagOutputDir
	}
	engine := cfg.Engine
	if flagEngine != "" {
		engine = flagEngine
	}
	baseURL := cfg.Batch.BaseURL
	if flagBaseURL != "" {
		baseURL = flagBaseURL
	}
	if baseURL == "" {
		baseURL = catalogURL
	}
	marker := cfg.Batch.Marker
	if cmd.Flags().Changed("marker") {
		marker = flagMarker
	}
	delay := cfg.Batch.Delay
	if cmd.Flags().Changed("delay") {
		delay = flagDelay
	}
	fetchCfg := cfg.Fetch
	if cmd.Flags().Changed("parallel") {
		fetchCfg.Parallelism = flagParallel
	}
	enhanceArgv := cfg.Enhance.Command
	if cmd.Flags().Changed("enhance") {
		enhanceArgv = flagEnhance
	}

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

	var doc []byte
	if strings.HasPrefix(catalogURL, "http://") || strings.HasPrefix(catalogURL, "https://") {
		doc, err = crawl.FetchCatalog(cmd.Context(), catalogURL)
	} else {
		doc, err = os.ReadFile(catalogURL)
	}
	if err != nil {
		return err
	}
	books, err := crawl.Books(doc, baseURL, marker)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		return fmt.Errorf("no reader links found at %s", catalogURL)
	}
	fmt.Fprintf(os.Stdout, "Found %d books\n", len(books))

	browser, err := snapshot.NewBrowser(browserOptions(cfg.Browser)...)
	if err != nil {
		return err
	}
	defer browser.Close()

	var enhancer core.Enhancer = enhance.Noop{}
	if len(enhanceArgv) > 0 {
		enhancer = enhance.NewCommand(enhanceArgv)
	}

	p, err := pipeline.New(pipeline.Config{
		Provider:       browser,
		Extractor:      extractor,
		Normalizer:     normalize.New(),
		Fetcher:        newFetcher(fetchCfg),
		Enhancer:       enhancer,
		Assembler:      assembler,
		Layout:         layout,
		SaveSnapshot:   flagSaveHTML,
		WriteReport:    flagReport,
		Parallelism:    fetchCfg.Parallelism,
		InterBookDelay: delay,
		Logger:         slog.Default(),
	})
	if err != nil {
		return err
	}

	reqs := make([]pipeline.Request, len(books))
	for i, u := range books {
		reqs[i] = pipeline.Request{Name: fmt.Sprintf("book_%d", i+1), Source: u}
	}

	batchRes, err := p.RunBatch(cmd.Context(), reqs)
	if err != nil {
		return err
	}
	for _, f := range batchRes.Failures {
		fmt.Fprintf(os.Stderr, "✗ %s: %s\n", f.Book, f.Reason)
	}
	ok := batchRes.Succeeded()
	fmt.Fprintf(os.Stdout, "✓ %d/%d books assembled\n", ok, len(books))
	if ok == 0 {
		return fmt.Errorf("all %d books failed", len(books))
	}
	return nil
}
