package core

// reader.go turns an uploaded file into text for the parser.
//
// Spreadsheet exports often start with a byte order mark and sometimes
// contain bytes that are not valid UTF-8. The BOM is stripped (a UTF-16
// BOM switches decoding to UTF-16) and invalid sequences become U+FFFD so
// one bad byte never rejects a whole file.

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxFileSize is the upload size limit when none is configured (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// ErrFileTooLarge is returned when an import file exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// NewImportReader wraps r with BOM handling and UTF-8 repair.
func NewImportReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadImportText reads at most maxBytes raw bytes from r and returns the
// decoded text. Empty input is returned as "" without error.
func ReadImportText(r io.Reader, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSize
	}

	counted := &countingReader{r: io.LimitReader(r, maxBytes+1)}
	data, err := io.ReadAll(NewImportReader(counted))
	if err != nil {
		return "", fmt.Errorf("read import file: %w", err)
	}
	if counted.n > maxBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxBytes)
	}
	return string(data), nil
}

// countingReader tracks raw bytes consumed before decoding.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
