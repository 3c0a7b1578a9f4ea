package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Ibino273/raspi-moto-scraper/models"
)

// CSVWriter writes raw (unnormalized) detail fields to a CSV file so that
// extraction drift can be inspected after a run.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	now    func() time.Time
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	// Write header
	if err := w.Write([]string{
		"scraped_at", "url", "title", "price", "publish_date", "likes", "city", "features",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w, now: time.Now}, nil
}

// WriteRaw appends one row for the detail page.
func (c *CSVWriter) WriteRaw(d models.RawDetail) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	features := make([]string, 0, len(d.Features))
	for _, f := range d.Features {
		features = append(features, strings.TrimSpace(f.Label)+"="+strings.TrimSpace(f.Value))
	}

	row := []string{
		c.now().Format(time.RFC3339),
		d.URL,
		d.Fields[models.FieldTitle],
		d.Fields[models.FieldPrice],
		d.Fields[models.FieldPublishDate],
		d.Fields[models.FieldLikes],
		d.Fields[models.FieldCity],
		strings.Join(features, "; "),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
