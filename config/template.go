package config

import (
	"fmt"
	"os"
)

// DefaultTemplate is the commented starter config written by WriteDefault.
// Its values mirror DefaultConfig.
const DefaultTemplate = `# bindery configuration.
# Flags and BINDERY_* environment variables override these values.

# Directory that receives book folders and assembled documents.
# Empty means the current working directory.
output_dir: ""

# PDF engine: pdfcpu or gofpdf.
engine: pdfcpu

fetch:
  timeout: 30s
  attempts: 3
  retry_delay: 1s
  parallelism: 1
  # user_agent: my-agent/1.0

batch:
  delay: 10s
  marker: "feuilletage.php?issue="
  # base_url: https://press.example.com

browser:
  # chrome_path: /usr/bin/chromium
  managed: false
  no_sandbox: false
  timeout: 3m
  page_delay: 1s
  settle_delay: 5s
  ready_selector: ".currentPage"
  page_count_expr: '(() => { const el = document.querySelector(".num-last"); return el ? parseInt(el.textContent.trim(), 10) || 0 : 0; })()'
  pager_expr: "Milibris.MultiViewer.reader.controller.goToPage(%d);"

enhance:
  # command: ["mogrify", "-strip", "{}"]
  command: []
`

// WriteDefault writes the starter config template to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.WriteFile(path, []byte(DefaultTemplate), 0o644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
