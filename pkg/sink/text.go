package sink

import (
	"context"
	"io"

	"github.com/vnykmshr/prioflow/pkg/streaming/writer"
	"github.com/vnykmshr/prioflow/pkg/task"
)

// DefaultPrefix starts every line written by a Text sink.
const DefaultPrefix = "[Logger] "

// Text renders each record as one line, for example
// "[Logger] Completed: deploy (Priority 1)".
type Text struct {
	out    *writer.AsyncWriter
	prefix string
}

// TextConfig configures a Text sink.
type TextConfig struct {
	// Prefix is written before every record. Defaults to DefaultPrefix;
	// set NoPrefix to write bare records.
	Prefix   string
	NoPrefix bool

	// Writer tunes buffering. The zero value uses writer.DefaultConfig.
	Writer *writer.Config
}

// NewText creates a Text sink writing to w.
func NewText(w io.Writer, config TextConfig) *Text {
	wc := writer.DefaultConfig()
	if config.Writer != nil {
		wc = *config.Writer
	}
	prefix := config.Prefix
	if prefix == "" && !config.NoPrefix {
		prefix = DefaultPrefix
	}
	return &Text{
		out:    writer.NewWithConfig(w, wc),
		prefix: prefix,
	}
}

// Consume implements Sink. The line is handed to the writer in a single
// Write call.
func (t *Text) Consume(_ context.Context, rec task.Record) error {
	_, err := t.out.WriteString(t.prefix + rec.String() + "\n")
	return err
}

// Flush pushes buffered lines to the underlying writer.
func (t *Text) Flush(ctx context.Context) error {
	return t.out.Flush(ctx)
}

// Close flushes and stops the background writer.
func (t *Text) Close() error {
	return t.out.Close()
}
