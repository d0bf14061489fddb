package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Console reads operator input. Prompts and the readiness gate share one
// reader so buffered input is never lost between them.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole creates a Console over the given streams.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Ask prints label and returns the trimmed line the operator types.
func (c *Console) Ask(ctx context.Context, label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.readLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// WaitForEnter prints msg and blocks until a line is entered.
func (c *Console) WaitForEnter(ctx context.Context, msg string) error {
	fmt.Fprint(c.out, msg)
	_, err := c.readLine(ctx)
	return err
}

// readLine returns the next line; a final line without a newline is
// accepted. The blocked read is abandoned, not interrupted, on cancellation.
func (c *Console) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("failed to read console input: %w", r.err)
		}
		return r.line, nil
	}
}
