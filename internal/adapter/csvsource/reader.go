// Package csvsource reads sample rows from delimited text exports.
package csvsource

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"golang.org/x/text/encoding/charmap"
)

// Reader loads a CSV file into raw records.
// It implements pipeline.SampleSource.
type Reader struct {
	path   string
	logger *slog.Logger
}

// NewReader creates a reader for the file at path.
func NewReader(path string, logger *slog.Logger) *Reader {
	return &Reader{path: path, logger: logger}
}

// Records reads the whole file. Failing to open or decode the header is an
// error; individual malformed rows are skipped.
func (r *Reader) Records(ctx context.Context) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read samples file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(data, r.logger)
}

// Parse decodes CSV bytes. Non-UTF-8 input is treated as ISO-8859-1, which
// covers the degree and micro signs common in instrument exports. The
// delimiter is sniffed from the header line.
func Parse(data []byte, logger *slog.Logger) ([]domain.RawRecord, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode latin-1: %w", err)
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var records []domain.RawRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Debug("csv row skipped", "line", perr.Line, "error", perr.Err)
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) && h != "" {
				fields[h] = row[j]
			}
		}
		records = append(records, domain.RawRecord{Line: line, Fields: fields})
	}
	return records, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab in the
// first line, defaulting to comma.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	best, bestCount := ',', bytes.Count(first, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(first, []byte{byte(d)}); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
