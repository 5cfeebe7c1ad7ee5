package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Console is a ports.ChatSink that writes to an io.Writer, grounded on the
// teacher's console Notifier shape (stdout by default, injectable writer for
// tests) but trimmed to the single Send method ChatSink needs.
type Console struct {
	out io.Writer
}

func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) Send(_ context.Context, message string) error {
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", time.Now().Format(time.RFC3339), message)
	if err != nil {
		return fmt.Errorf("notify.Console.Send: %w", err)
	}
	return nil
}
