// Command gpngopt recompresses PNG files losslessly.
//
// Usage:
//
//	gpngopt optimize [flags] <in.png> <out.png>   Write the smallest PNG found (use "-" for stdin/stdout)
//	gpngopt config [--config file.yaml]           Print the effective options as YAML
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gpngopt: %v\n", err)
		os.Exit(1)
	}
}
