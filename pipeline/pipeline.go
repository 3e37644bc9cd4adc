// Package pipeline orchestrates the stages that turn one web book into a
// PDF document: snapshot, extract, normalize, fetch, enhance, assemble.
//
// The pipeline is resumable. Fetching is idempotent against the book
// directory, so re-running a partially downloaded book only retrieves the
// missing pages. Individual page failures are recorded, not fatal; a run
// aborts only when a stage leaves nothing for the next one to work on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alaroche/bindery/core"
	"github.com/alaroche/bindery/core/enhance"
	"github.com/alaroche/bindery/core/output"
)

// Config wires the pipeline stages together. Extractor, Normalizer, Fetcher,
// Assembler, and Layout are required. Provider is required only for runs
// that do not carry their own snapshot.
type Config struct {
	Provider   core.SnapshotProvider
	Extractor  core.Extractor
	Normalizer core.Normalizer
	Fetcher    core.Fetcher
	Enhancer   core.Enhancer
	Assembler  core.Assembler
	Layout     *output.Layout

	// SaveSnapshot keeps the captured reader document in the book directory
	// so later runs can re-extract without a browser.
	SaveSnapshot bool

	// WriteReport serializes the run result next to the book directory.
	WriteReport bool

	// Parallelism caps concurrent page fetches. Zero means sequential.
	Parallelism int

	// InterBookDelay is the pause before each book of a batch run, the
	// first included, pacing requests toward the publisher.
	InterBookDelay time.Duration

	Logger *slog.Logger
}

// Pipeline runs books through the configured stages. It is safe for
// concurrent use as long as distinct runs target distinct book names.
type Pipeline struct {
	cfg Config
	log *slog.Logger
}

// New validates the stage wiring and creates a Pipeline. A nil Enhancer
// defaults to a no-op and a nil Logger to slog.Default.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Extractor == nil:
		return nil, errors.New("bindery: pipeline requires an extractor")
	case cfg.Normalizer == nil:
		return nil, errors.New("bindery: pipeline requires a normalizer")
	case cfg.Fetcher == nil:
		return nil, errors.New("bindery: pipeline requires a fetcher")
	case cfg.Assembler == nil:
		return nil, errors.New("bindery: pipeline requires an assembler")
	case cfg.Layout == nil:
		return nil, errors.New("bindery: pipeline requires an output layout")
	}

	if cfg.Enhancer == nil {
		cfg.Enhancer = enhance.Noop{}
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, log: log}, nil
}

// Request identifies one book to process. Name becomes the book directory
// and document name. Source is the reader URL or snapshot path handed to
// the provider; a non-nil Snapshot short-circuits the provider entirely.
type Request struct {
	Name     string
	Source   string
	Snapshot []byte
}

// Run processes one book and returns its result. The returned Result is
// non-nil even on failure, with State recording where the run stopped.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	log := p.log.With("book", req.Name)
	res := &Result{Book: req.Name, Source: req.Source, State: StateInit}

	res.State = StateExtracting
	doc, err := p.document(ctx, req)
	if err != nil {
		return p.abort(res, log, err)
	}

	if err := p.cfg.Layout.EnsureBookDir(req.Name); err != nil {
		return p.abort(res, log, err)
	}
	if p.cfg.SaveSnapshot {
		path := p.cfg.Layout.SnapshotPath(req.Name)
		if err := os.WriteFile(path, doc, 0o644); err != nil {
			log.Warn("snapshot not saved", "path", path, "error", err)
		} else {
			log.Debug("snapshot saved", "path", path)
		}
	}

	refs, err := p.cfg.Extractor.Extract(doc)
	if err != nil {
		return p.abort(res, log, fmt.Errorf("extracting page references: %w", err))
	}
	if len(refs) == 0 {
		return p.abort(res, log, fmt.Errorf("%w in snapshot of %s", core.ErrNoReferences, req.Source))
	}
	log.Info("page references extracted", "count", len(refs))

	book := p.resolve(req, refs, res, log)
	res.Pages = len(book.Pages)
	if res.Pages == 0 {
		return p.abort(res, log, fmt.Errorf("all %d page references of %s are malformed", len(refs), req.Name))
	}

	res.State = StateFetching
	log.Info("fetching pages", "count", res.Pages, "parallelism", p.cfg.Parallelism)
	if err := p.fetchAll(ctx, book, res, log); err != nil {
		return p.abort(res, log, err)
	}
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Index < res.Failures[j].Index })
	if res.Fetched+res.Skipped == 0 {
		return p.abort(res, log, fmt.Errorf("all %d page fetches failed for %s", res.Pages, req.Name))
	}
	log.Info("pages ready", "fetched", res.Fetched, "skipped", res.Skipped, "failed", len(res.Failures))

	res.State = StateAssembling
	docPath := p.cfg.Layout.DocumentPath(req.Name)
	pages, err := p.cfg.Assembler.Assemble(p.cfg.Layout.BookDir(req.Name), docPath)
	if err != nil {
		return p.abort(res, log, fmt.Errorf("assembling %s: %w", req.Name, err))
	}
	res.Document = docPath

	res.State = StateDone
	p.report(res, log)
	log.Info("book assembled", "document", docPath, "pages", pages)
	return res, nil
}

// RunBatch processes books in order, pausing before each one. A book abort
// is recorded and the batch moves on; only context cancellation stops the
// whole batch.
func (p *Pipeline) RunBatch(ctx context.Context, reqs []Request) (*BatchResult, error) {
	batch := &BatchResult{}
	for _, req := range reqs {
		if p.cfg.InterBookDelay > 0 {
			p.log.Info("pausing before book", "book", req.Name, "delay", p.cfg.InterBookDelay)
			select {
			case <-ctx.Done():
				return batch, ctx.Err()
			case <-time.After(p.cfg.InterBookDelay):
			}
		}

		res, err := p.Run(ctx, req)
		batch.Books = append(batch.Books, res)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			batch.Failures = append(batch.Failures, BookFailure{Book: req.Name, Reason: err.Error()})
		}
	}
	return batch, nil
}

// document returns the reader snapshot for req, capturing it through the
// provider when the request does not carry one.
func (p *Pipeline) document(ctx context.Context, req Request) ([]byte, error) {
	if req.Snapshot != nil {
		return req.Snapshot, nil
	}
	if p.cfg.Provider == nil {
		return nil, errors.New("bindery: pipeline has no snapshot provider")
	}
	doc, err := p.cfg.Provider.Snapshot(ctx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("capturing %s: %w", req.Source, err)
	}
	return doc, nil
}

// resolve normalizes the extracted references into fetchable pages with
// dense one-based indices. Malformed references are recorded and skipped.
func (p *Pipeline) resolve(req Request, refs []core.PageReference, res *Result, log *slog.Logger) *core.Book {
	book := &core.Book{SourceURL: req.Source, Name: req.Name}
	for _, ref := range refs {
		url, err := p.cfg.Normalizer.Normalize(ref.RawURL)
		if err != nil {
			log.Warn("reference skipped", "raw", ref.RawURL, "error", err)
			res.Failures = append(res.Failures, PageFailure{Index: ref.DiscoveryOrder, URL: ref.RawURL, Reason: err.Error()})
			continue
		}
		index := len(book.Pages) + 1
		book.Pages = append(book.Pages, core.ResolvedPage{
			URL:       url,
			PageIndex: index,
			LocalPath: p.cfg.Layout.PagePath(req.Name, index, output.ExtForURL(url)),
		})
	}
	return book
}

// fetchAll retrieves every page of the book, enhancing freshly downloaded
// ones. Page failures are recorded in res; only context cancellation is
// returned as an error.
func (p *Pipeline) fetchAll(ctx context.Context, book *core.Book, res *Result, log *slog.Logger) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.Parallelism)

	var mu sync.Mutex
	for i := range book.Pages {
		page := &book.Pages[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			downloaded, err := p.cfg.Fetcher.Fetch(ctx, page.URL, page.LocalPath)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("page failed", "page", page.PageIndex, "url", page.URL, "error", err)
				mu.Lock()
				res.Failures = append(res.Failures, PageFailure{Index: page.PageIndex, URL: page.URL, Reason: err.Error()})
				mu.Unlock()
				return nil
			}

			if downloaded {
				if err := p.cfg.Enhancer.Enhance(ctx, page.LocalPath); err != nil {
					log.Warn("enhance failed", "page", page.PageIndex, "error", err)
				}
			} else {
				log.Debug("page already present", "page", page.PageIndex)
			}

			mu.Lock()
			if downloaded {
				res.Fetched++
			} else {
				res.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}
	return eg.Wait()
}

// abort marks the run failed, writes the report if one is configured, and
// passes err through.
func (p *Pipeline) abort(res *Result, log *slog.Logger, err error) (*Result, error) {
	res.State = StateAborted
	p.report(res, log)
	log.Error("book aborted", "error", err)
	return res, err
}

// report writes the run report when configured. Report problems never fail
// the run that produced them.
func (p *Pipeline) report(res *Result, log *slog.Logger) {
	if !p.cfg.WriteReport {
		return
	}
	path := p.cfg.Layout.ReportPath(res.Book)
	if err := writeReport(path, res); err != nil {
		log.Warn("report not written", "path", path, "error", err)
	}
}
