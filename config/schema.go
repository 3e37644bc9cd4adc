package config

import "time"

// Config holds bindery configuration.
// Loaded from config.yaml, with flag and environment overrides on top.
type Config struct {
	// OutputDir receives book directories and assembled documents.
	// Empty means the current working directory.
	OutputDir string     `mapstructure:"output_dir" yaml:"output_dir"`
	Engine    string     `mapstructure:"engine" yaml:"engine"` // "pdfcpu" or "gofpdf"
	Fetch     FetchCfg   `mapstructure:"fetch" yaml:"fetch"`
	Batch     BatchCfg   `mapstructure:"batch" yaml:"batch"`
	Browser   BrowserCfg `mapstructure:"browser" yaml:"browser"`
	Enhance   EnhanceCfg `mapstructure:"enhance" yaml:"enhance"`
}

// FetchCfg configures page image retrieval.
type FetchCfg struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`         // Per-request timeout
	Attempts    uint          `mapstructure:"attempts" yaml:"attempts"`       // Tries per page
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"` // Pause between tries
	Parallelism int           `mapstructure:"parallelism" yaml:"parallelism"` // Concurrent page fetches
	UserAgent   string        `mapstructure:"user_agent" yaml:"user_agent"`   // Empty uses the built-in agent
}

// BatchCfg configures multi-book catalog runs.
type BatchCfg struct {
	Delay   time.Duration `mapstructure:"delay" yaml:"delay"`       // Pause before each book
	Marker  string        `mapstructure:"marker" yaml:"marker"`     // Substring identifying reader links
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"` // Link resolution base; empty uses the catalog URL
}

// BrowserCfg configures the headless browser capturing reader snapshots.
type BrowserCfg struct {
	ChromePath    string        `mapstructure:"chrome_path" yaml:"chrome_path"` // Empty searches standard locations
	Managed       bool          `mapstructure:"managed" yaml:"managed"`         // Download a Chromium build when none is found
	NoSandbox     bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageDelay     time.Duration `mapstructure:"page_delay" yaml:"page_delay"`
	SettleDelay   time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ReadySelector string        `mapstructure:"ready_selector" yaml:"ready_selector"`
	PageCountExpr string        `mapstructure:"page_count_expr" yaml:"page_count_expr"`
	PagerExpr     string        `mapstructure:"pager_expr" yaml:"pager_expr"`
}

// EnhanceCfg configures the post-fetch image hook.
type EnhanceCfg struct {
	// Command is the tool argv run against each downloaded page; "{}" stands
	// for the image path. Empty disables enhancement.
	Command []string `mapstructure:"command" yaml:"command"`
}

// DefaultConfig returns configuration with sensible defaults. The reader
// selectors and scripts target the Milibris multi-viewer.
func DefaultConfig() *Config {
	return &Config{
		Engine: "pdfcpu",
		Fetch: FetchCfg{
			Timeout:     30 * time.Second,
			Attempts:    3,
			RetryDelay:  time.Second,
			Parallelism: 1,
		},
		Batch: BatchCfg{
			Delay:  10 * time.Second,
			Marker: "feuilletage.php?issue=",
		},
		Browser: BrowserCfg{
			Timeout:       3 * time.Minute,
			PageDelay:     time.Second,
			SettleDelay:   5 * time.Second,
			ReadySelector: ".currentPage",
			PageCountExpr: `(() => { const el = document.querySelector(".num-last"); return el ? parseInt(el.textContent.trim(), 10) || 0 : 0; })()`,
			PagerExpr:     "Milibris.MultiViewer.reader.controller.goToPage(%d);",
		},
	}
}
