package snapshot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alaroche/bindery/snapshot"
)

// chromeAvailable reports whether a Chrome/Chromium executable is in PATH.
func chromeAvailable() bool {
	for _, name := range []string{
		"chromium-browser", "chromium", "google-chrome",
		"google-chrome-stable", "chrome",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func skipIfNoChrome(t *testing.T) {
	t.Helper()
	if !chromeAvailable() {
		t.Skip("skipping: Chrome/Chromium not found in PATH")
	}
}

func newTestBrowser(t *testing.T, opts ...snapshot.Option) *snapshot.Browser {
	t.Helper()
	skipIfNoChrome(t)
	opts = append([]snapshot.Option{
		snapshot.WithNoSandbox(),
		snapshot.WithPageDelay(20 * time.Millisecond),
		snapshot.WithSettleDelay(20 * time.Millisecond),
		snapshot.WithTimeout(time.Minute),
	}, opts...)
	b, err := snapshot.NewBrowser(opts...)
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// readerPage mimics a paginated reader: the pager callback appends one page
// div per call, the way real readers materialize lazily loaded backgrounds.
const readerPage = `<!DOCTYPE html>
<html><head><script>
window.Milibris = {MultiViewer: {reader: {controller: {goToPage: function(n) {
  var d = document.createElement("div");
  d.className = "page";
  d.setAttribute("style", "background-image: url('//cdn.example.com/p" + n + ".jpg')");
  document.body.appendChild(d);
}}}}};
</script></head>
<body>
<div class="currentPage">1</div>
<div class="num-last">3</div>
</body></html>`

func TestFileSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.html")
	if err := os.WriteFile(path, []byte(readerPage), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := snapshot.NewFile().Snapshot(context.Background(), path)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if string(data) != readerPage {
		t.Error("Snapshot() did not return the file contents")
	}
}

func TestFileSnapshotMissing(t *testing.T) {
	_, err := snapshot.NewFile().Snapshot(context.Background(), filepath.Join(t.TempDir(), "absent.html"))
	if err == nil {
		t.Fatal("Snapshot() = nil, want error for missing file")
	}
}

func TestBrowserSnapshotTurnsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(readerPage))
	}))
	defer srv.Close()

	b := newTestBrowser(t)
	data, err := b.Snapshot(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}

	html := string(data)
	for _, want := range []string{"p1.jpg", "p2.jpg", "p3.jpg"} {
		if !strings.Contains(html, want) {
			t.Errorf("captured document missing %s", want)
		}
	}
}

func TestBrowserClosed(t *testing.T) {
	b := newTestBrowser(t)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	_, err := b.Snapshot(context.Background(), "http://127.0.0.1:1/")
	if !errors.Is(err, snapshot.ErrClosed) {
		t.Fatalf("Snapshot() after Close = %v, want ErrClosed", err)
	}
}
