package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/pagesift/pagesift/pkg/pagesift"
)

// JSONWriter buffers results and writes them as one JSON document on
// Flush: a bare object for a single result, an array otherwise.
type JSONWriter struct {
	w     *bufio.Writer
	cfg   *writerConfig
	items []any
}

func newJSONWriter(w io.Writer, cfg *writerConfig) *JSONWriter {
	return &JSONWriter{
		w:   bufio.NewWriter(w),
		cfg: cfg,
	}
}

// Write buffers a single result.
func (w *JSONWriter) Write(res *pagesift.Result) error {
	w.items = append(w.items, w.cfg.payload(res))
	return nil
}

// WriteAll buffers multiple results.
func (w *JSONWriter) WriteAll(results []*pagesift.Result) error {
	for _, res := range results {
		w.items = append(w.items, w.cfg.payload(res))
	}
	return nil
}

// Flush writes the buffered results.
func (w *JSONWriter) Flush() error {
	var doc any = w.items
	if len(w.items) == 1 {
		doc = w.items[0]
	}

	var output []byte
	var err error
	if w.cfg.pretty {
		output, err = json.MarshalIndent(doc, "", w.cfg.indent)
	} else {
		output, err = json.Marshal(doc)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}

	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter streams each result as one JSON line, suited to piping
// batch output into line-oriented tools.
type JSONLWriter struct {
	w   *bufio.Writer
	cfg *writerConfig
}

func newJSONLWriter(w io.Writer, cfg *writerConfig) *JSONLWriter {
	return &JSONLWriter{
		w:   bufio.NewWriter(w),
		cfg: cfg,
	}
}

// Write writes a single result as a JSON line.
func (w *JSONLWriter) Write(res *pagesift.Result) error {
	output, err := json.Marshal(w.cfg.payload(res))
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}

	return w.w.Flush()
}

// WriteAll writes each result on its own line.
func (w *JSONLWriter) WriteAll(results []*pagesift.Result) error {
	for _, res := range results {
		if err := w.Write(res); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
