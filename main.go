package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alaroche/bindery/cmd"
)

func main() {
	// Interrupting a run cancels in-flight fetches; the pipeline still
	// writes its report before exiting.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd.Execute(ctx)
}
