// Package enhance implements the Enhancer interface.
// Enhancers run after a page image is fetched and before assembly. They are
// best-effort: the pipeline logs and swallows their failures, so an enhancer
// must never leave the page file worse than it found it.
package enhance

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Noop leaves page images untouched. It is the default configuration.
type Noop struct{}

// Enhance does nothing.
func (Noop) Enhance(ctx context.Context, path string) error {
	return nil
}

// Command runs an external tool against each page image, for example an
// ImageMagick denoise pass. The argv slice names the tool and its arguments;
// every "{}" argument is replaced with the image path, and the path is
// appended when no placeholder is present.
//
// The tool runs against a temporary copy which replaces the original only on
// success, so a failing tool cannot corrupt the fetched bytes.
type Command struct {
	argv []string
}

// NewCommand creates a Command enhancer from an argv list. An empty list
// yields an enhancer that does nothing.
func NewCommand(argv []string) *Command {
	return &Command{argv: argv}
}

// Enhance copies path to a temp file, runs the configured tool on the copy,
// and renames the copy over the original on success.
func (c *Command) Enhance(ctx context.Context, path string) error {
	if len(c.argv) == 0 {
		return nil
	}

	tmp, err := copyToTemp(path)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	name := c.argv[0]
	args, substituted := expandArgs(c.argv[1:], tmp)
	if !substituted {
		args = append(args, tmp)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("running %s: %s: %w", name, strings.TrimSpace(string(out)), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// expandArgs substitutes the image path for "{}" placeholders.
func expandArgs(argv []string, path string) (args []string, substituted bool) {
	args = make([]string, 0, len(argv))
	for _, a := range argv {
		if strings.Contains(a, "{}") {
			a = strings.ReplaceAll(a, "{}", path)
			substituted = true
		}
		args = append(args, a)
	}
	return args, substituted
}

// copyToTemp copies the file at path into a temp file in the same directory
// and returns the temp path.
func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	// The temp name must not end in an image extension: an interrupted run
	// would otherwise leave a file the assembler counts as an extra page.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".enhance-*")
	if err != nil {
		return "", fmt.Errorf("creating temp copy: %w", err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copying %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing temp copy: %w", err)
	}
	return tmp.Name(), nil
}
