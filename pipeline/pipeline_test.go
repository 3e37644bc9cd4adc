package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/alaroche/bindery/core"
	"github.com/alaroche/bindery/core/assemble"
	"github.com/alaroche/bindery/core/extract"
	"github.com/alaroche/bindery/core/fetch"
	"github.com/alaroche/bindery/core/normalize"
	"github.com/alaroche/bindery/core/output"
	"github.com/alaroche/bindery/pipeline"
	"github.com/alaroche/bindery/snapshot"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 8))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 5, 7))
	for y := 0; y < 7; y++ {
		img.Set(2, y, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

// pageServer serves page images and counts requests per path.
type pageServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newPageServer(t *testing.T, pages map[string][]byte) *pageServer {
	t.Helper()
	ps := &pageServer{hits: make(map[string]int)}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.hits[r.URL.Path]++
		ps.mu.Unlock()

		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(ps.Server.Close)
	return ps
}

func (ps *pageServer) hitsFor(path string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.hits[path]
}

// structuredSnapshot builds a reader document with one div.page per URL.
func structuredSnapshot(urls ...string) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><body>\n")
	for _, u := range urls {
		fmt.Fprintf(&b, "<div class=\"page\" style=\"background-image: url('%s')\"></div>\n", u)
	}
	b.WriteString("</body></html>\n")
	return []byte(b.String())
}

func newTestConfig(layout *output.Layout) pipeline.Config {
	return pipeline.Config{
		Extractor:  extract.NewStructured(),
		Normalizer: normalize.New(),
		Fetcher:    fetch.New(fetch.WithRetryDelay(time.Millisecond)),
		Assembler:  assemble.NewPDFCPU(),
		Layout:     layout,
		Logger:     quietLogger(),
	}
}

func documentPages(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		t.Fatalf("counting pages in %s: %v", path, err)
	}
	return n
}

func TestRunAssemblesBook(t *testing.T) {
	srv := newPageServer(t, map[string][]byte{
		"/p1.jpg": encodeJPEG(t),
		"/p2.png": encodePNG(t),
		"/p3.jpg": encodeJPEG(t),
	})

	snapPath := filepath.Join(t.TempDir(), "reader.html")
	doc := structuredSnapshot(srv.URL+"/p1.jpg", srv.URL+"/p2.png", srv.URL+"/p3.jpg")
	if err := os.WriteFile(snapPath, doc, 0o644); err != nil {
		t.Fatal(err)
	}

	layout, err := output.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := newTestConfig(layout)
	cfg.Provider = snapshot.NewFile()
	cfg.SaveSnapshot = true
	cfg.WriteReport = true
	cfg.Parallelism = 2

	p, err := pipeline.New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	res, err := p.Run(context.Background(), pipeline.Request{Name: "mybook", Source: snapPath})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if res.State != pipeline.StateDone {
		t.Errorf("State = %v, want done", res.State)
	}
	if res.Pages != 3 || res.Fetched != 3 || res.Skipped != 0 {
		t.Errorf("Pages/Fetched/Skipped = %d/%d/%d, want 3/3/0", res.Pages, res.Fetched, res.Skipped)
	}
	if len(res.Failures) != 0 {
		t.Errorf("Failures = %v, want none", res.Failures)
	}

	for i, name := range []string{"page-001.jpg", "page-002.png", "page-003.jpg"} {
		path := filepath.Join(layout.BookDir("mybook"), name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("page %d missing: %v", i+1, err)
		}
	}

	if got := documentPages(t, res.Document); got != 3 {
		t.Errorf("document has %d pages, want 3", got)
	}

	saved, err := os.ReadFile(layout.SnapshotPath("mybook"))
	if err != nil {
		t.Fatalf("saved snapshot missing: %v", err)
	}
	if !bytes.Equal(saved, doc) {
		t.Error("saved snapshot differs from captured document")
	}

	reportData, err := os.ReadFile(layout.ReportPath("mybook"))
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}
	var report pipeline.Result
	if err := json.Unmarshal(reportData, &report); err != nil {
		t.Fatalf("parsing report: %v", err)
	}
	if report.State != pipeline.StateDone || report.Fetched != 3 || report.GeneratedAt == "" {
		t.Errorf("report = %+v, want done with 3 fetched and a timestamp", report)
	}
}

func TestRunSkipsExistingPages(t *testing.T) {
	srv := newPageServer(t, map[string][]byte{
		"/p1.jpg": encodeJPEG(t),
		"/p2.png": encodePNG(t),
		"/p3.jpg": encodeJPEG(t),
	})
	doc := structuredSnapshot(srv.URL+"/p1.jpg", srv.URL+"/p2.png", srv.URL+"/p3.jpg")

	layout, err := output.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := layout.EnsureBookDir("mybook"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.PagePath("mybook", 2, ".png"), encodePNG(t), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := pipeline.New(newTestConfig(layout))
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), pipeline.Request{
		Name:     "mybook",
		Source:   "https://press.example.com/reader",
		Snapshot: doc,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Fetched != 2 || res.Skipped != 1 {
		t.Errorf("Fetched/Skipped = %d/%d, want 2/1", res.Fetched, res.Skipped)
	}
	if got := srv.hitsFor("/p2.png"); got != 0 {
		t.Errorf("existing page fetched %d times, want 0", got)
	}

	// Re-running retrieves nothing and still rebuilds the document.
	res, err = p.Run(context.Background(), pipeline.Request{
		Name:     "mybook",
		Source:   "https://press.example.com/reader",
		Snapshot: doc,
	})
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if res.Fetched != 0 || res.Skipped != 3 {
		t.Errorf("second run Fetched/Skipped = %d/%d, want 0/3", res.Fetched, res.Skipped)
	}
	for _, path := range []string{"/p1.jpg", "/p3.jpg"} {
		if got := srv.hitsFor(path); got != 1 {
			t.Errorf("%s fetched %d times across runs, want 1", path, got)
		}
	}
	if got := documentPages(t, res.Document); got != 3 {
		t.Errorf("document has %d pages, want 3", got)
	}
}

func TestRunAbortsWithoutReferences(t *testing.T) {
	layout, err := output.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := newTestConfig(layout)
	cfg.WriteReport = true

	p, err := pipeline.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), pipeline.Request{
		Name:     "empty",
		Source:   "https://press.example.com/reader",
		Snapshot: []byte("<html><body><p>no pages here</p></body></html>"),
	})
	if !errors.Is(err, core.ErrNoReferences) {
		t.Fatalf("Run() error = %v, want ErrNoReferences", err)
	}
	if res == nil || res.State != pipeline.StateAborted {
		t.Fatalf("result = %+v, want aborted state", res)
	}
	if _, err := os.Stat(layout.DocumentPath("empty")); !errors.Is(err, os.ErrNotExist) {
		t.Error("document written despite abort")
	}

	reportData, err := os.ReadFile(layout.ReportPath("empty"))
	if err != nil {
		t.Fatalf("abort report missing: %v", err)
	}
	var report pipeline.Result
	if err := json.Unmarshal(reportData, &report); err != nil {
		t.Fatalf("parsing report: %v", err)
	}
	if report.State != pipeline.StateAborted {
		t.Errorf("report state = %v, want aborted", report.State)
	}
}

func TestRunAbortsWhenAllFetchesFail(t *testing.T) {
	srv := newPageServer(t, nil) // every path is a 404
	doc := structuredSnapshot(srv.URL+"/p1.jpg", srv.URL+"/p2.jpg")

	layout, err := output.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := newTestConfig(layout)
	cfg.Fetcher = fetch.New(fetch.WithAttempts(1), fetch.WithRetryDelay(time.Millisecond))

	p, err := pipeline.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), pipeline.Request{
		Name:     "gone",
		Source:   "https://press.example.com/reader",
		Snapshot: doc,
	})
	if err == nil {
		t.Fatal("Run() = nil, want error when every fetch fails")
	}
	if res.State != pipeline.StateAborted {
		t.Errorf("State = %v, want aborted", res.State)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("Failures = %v, want 2 entries", res.Failures)
	}
	if res.Failures[0].Index != 1 || res.Failures[1].Index != 2 {
		t.Errorf("failure indices = %d,%d, want 1,2", res.Failures[0].Index, res.Failures[1].Index)
	}
	if _, err := os.Stat(layout.DocumentPath("gone")); !errors.Is(err, os.ErrNotExist) {
		t.Error("document written despite abort")
	}
}

func TestRunBatchContinuesAfterBookFailure(t *testing.T) {
	srv := newPageServer(t, map[string][]byte{
		"/p1.jpg": encodeJPEG(t),
		"/p2.jpg": encodeJPEG(t),
	})

	layout, err := output.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := newTestConfig(layout)
	cfg.InterBookDelay = time.Millisecond

	p, err := pipeline.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	reqs := []pipeline.Request{
		{Name: "book_1", Source: "https://press.example.com/r1", Snapshot: structuredSnapshot(srv.URL+"/p1.jpg", srv.URL+"/p2.jpg")},
		{Name: "book_2", Source: "https://press.example.com/r2", Snapshot: []byte("<html><body></body></html>")},
	}

	batch, err := p.RunBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("RunBatch() error: %v", err)
	}
	if len(batch.Books) != 2 {
		t.Fatalf("Books = %d entries, want 2", len(batch.Books))
	}
	if got := batch.Succeeded(); got != 1 {
		t.Errorf("Succeeded() = %d, want 1", got)
	}
	if len(batch.Failures) != 1 || batch.Failures[0].Book != "book_2" {
		t.Errorf("Failures = %+v, want one entry for book_2", batch.Failures)
	}
	if _, err := os.Stat(layout.DocumentPath("book_1")); err != nil {
		t.Errorf("book_1 document missing: %v", err)
	}
}

func TestRunBatchHonorsCancellation(t *testing.T) {
	layout, err := output.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := newTestConfig(layout)
	cfg.InterBookDelay = time.Minute

	p, err := pipeline.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	batch, err := p.RunBatch(ctx, []pipeline.Request{
		{Name: "book_1", Source: "https://press.example.com/r1", Snapshot: structuredSnapshot("https://x/p1.jpg")},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RunBatch() error = %v, want deadline exceeded", err)
	}
	if len(batch.Books) != 0 {
		t.Errorf("Books = %d entries, want 0", len(batch.Books))
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the pause")
	}
}

func TestNewRequiresStages(t *testing.T) {
	if _, err := pipeline.New(pipeline.Config{}); err == nil {
		t.Fatal("New() = nil, want error for empty config")
	}

	layout, err := output.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.New(newTestConfig(layout)); err != nil {
		t.Fatalf("New() with full config = %v, want nil", err)
	}
}

func TestStateTextRoundTrip(t *testing.T) {
	states := []pipeline.State{
		pipeline.StateInit, pipeline.StateExtracting, pipeline.StateFetching,
		pipeline.StateAssembling, pipeline.StateDone, pipeline.StateAborted,
	}
	for _, want := range states {
		text, err := want.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", want, err)
		}
		var got pipeline.State
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != want {
			t.Errorf("round trip %q = %v, want %v", text, got, want)
		}
	}

	var s pipeline.State
	if err := s.UnmarshalText([]byte("melting")); err == nil {
		t.Error("UnmarshalText accepted an unknown state")
	}
}
