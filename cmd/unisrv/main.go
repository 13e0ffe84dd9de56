package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/cmd"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/output"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cmd.DefaultConfig()
	cfg.Context = ctx
	root := cmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		reportError(os.Stderr, err)
		return apierrors.ExitCode(err)
	}
	return 0
}

func reportError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "%s %v\n", output.ErrorPrefix(w), err)
	if errors.Is(err, apierrors.ErrAuthenticationExpired) {
		_, _ = fmt.Fprintln(w, output.Hint("Run 'unisrv login' to start a new session"))
	}
}
