package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordReader reads a secret from the user.
type PasswordReader interface {
	ReadPassword(ctx context.Context, prompt string) (string, error)
	IsInteractive() bool
}

type terminalPasswordReader struct {
	in     *os.File
	prompt io.Writer
}

// NewTerminalPasswordReader reads without echo from in when it is a terminal.
func NewTerminalPasswordReader(in *os.File, prompt io.Writer) PasswordReader {
	return &terminalPasswordReader{in: in, prompt: prompt}
}

func (r *terminalPasswordReader) IsInteractive() bool {
	return r.in != nil && term.IsTerminal(int(r.in.Fd()))
}

func (r *terminalPasswordReader) ReadPassword(ctx context.Context, prompt string) (string, error) {
	if !r.IsInteractive() {
		return "", errors.New("password prompt requires a terminal")
	}
	_, _ = fmt.Fprint(r.prompt, prompt)

	type result struct {
		value []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := term.ReadPassword(int(r.in.Fd()))
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(r.prompt)
		return "", ctx.Err()
	case res := <-done:
		_, _ = fmt.Fprintln(r.prompt)
		if res.err != nil {
			return "", fmt.Errorf("failed to read password: %w", res.err)
		}
		return strings.TrimRight(string(res.value), "\r\n"), nil
	}
}
