// piitag tags PII spans in utterances with a BIO token classifier.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/piitag/piitag/internal/commands"
	"k8s.io/klog/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx)
	stop()
	klog.Flush()
	os.Exit(code)
}
