package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/pagesift/pagesift/pkg/pagesift"
)

// YAMLWriter buffers results and writes them as YAML on Flush.
type YAMLWriter struct {
	w     *bufio.Writer
	cfg   *writerConfig
	items []any
}

func newYAMLWriter(w io.Writer, cfg *writerConfig) *YAMLWriter {
	return &YAMLWriter{
		w:   bufio.NewWriter(w),
		cfg: cfg,
	}
}

// Write buffers a single result.
func (w *YAMLWriter) Write(res *pagesift.Result) error {
	w.items = append(w.items, w.cfg.payload(res))
	return nil
}

// WriteAll buffers multiple results.
func (w *YAMLWriter) WriteAll(results []*pagesift.Result) error {
	for _, res := range results {
		w.items = append(w.items, w.cfg.payload(res))
	}
	return nil
}

// Flush writes the buffered results; a single result is emitted as a
// bare document rather than a one-element sequence.
func (w *YAMLWriter) Flush() error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	var doc any = w.items
	if len(w.items) == 1 {
		doc = w.items[0]
	}

	if err := encoder.Encode(doc); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	return w.w.Flush()
}

// Close flushes the writer.
func (w *YAMLWriter) Close() error {
	return w.Flush()
}
