package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"housemarket-scraper/models"
)

// CSVWriter appends each run's extracted records to a CSV file, including
// which tier supplied the key fields. The file is an extraction-quality
// audit trail, not the record store. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var csvHeader = []string{
	"source_id", "url", "title", "address", "agent_name",
	"price", "beds", "sqft", "property_type", "images",
	"title_tier", "price_tier", "address_tier",
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created
// automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRecords appends the given records.
func (c *CSVWriter) WriteRecords(records []*models.ListingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range records {
		row := []string{
			rec.SourceID,
			rec.URL,
			rec.Title,
			rec.Address,
			rec.AgentName,
			intOrEmpty(rec.Price),
			intOrEmpty(rec.Beds),
			intOrEmpty(rec.Sqft),
			string(rec.PropertyType),
			strings.Join(rec.Images, " "),
			tierOf(rec, models.FieldTitle),
			tierOf(rec, models.FieldPrice),
			tierOf(rec, models.FieldAddress),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	return c.file.Close()
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func tierOf(rec *models.ListingRecord, field string) string {
	if rec.Sources == nil {
		return ""
	}
	return string(rec.Sources[field])
}
