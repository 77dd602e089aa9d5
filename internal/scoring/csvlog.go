// SPDX-License-Identifier: MIT
package scoring

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

// FeatureHeader returns the column names for width features, optionally
// prefixed with leading columns and followed by "label".
func FeatureHeader(width int, leading ...string) []string {
	h := make([]string, 0, len(leading)+width+1)
	h = append(h, leading...)
	for i := range width {
		h = append(h, "f"+strconv.Itoa(i))
	}
	return append(h, "label")
}

// FormatFeatures renders values with six decimals.
func FormatFeatures(features []float64) []string {
	out := make([]string, len(features))
	for i, v := range features {
		out[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return out
}

// FeatureLog appends labelled feature vectors to a CSV file as
// word,f0..fN,label so live sessions can feed retraining. It is safe for
// concurrent use.
type FeatureLog struct {
	mu    sync.Mutex
	c     io.Closer
	w     *csv.Writer
	width int
}

// OpenFeatureLog opens (or creates) path for appending. The header is
// written only when the file is new or empty.
func OpenFeatureLog(path string, width int) (*FeatureLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open feature log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat feature log: %w", err)
	}
	l := NewFeatureLog(f, width, info.Size() == 0)
	l.c = f
	return l, l.w.Error()
}

// NewFeatureLog writes to w, emitting the header first when header is set.
func NewFeatureLog(w io.Writer, width int, header bool) *FeatureLog {
	l := &FeatureLog{w: csv.NewWriter(w), width: width}
	if header {
		l.w.Write(FeatureHeader(width, "word"))
		l.w.Flush()
	}
	return l
}

// Append writes one row and flushes it.
func (l *FeatureLog) Append(word string, features []float64, label Classification) error {
	if len(features) != l.width {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, len(features), l.width)
	}
	row := make([]string, 0, l.width+2)
	row = append(row, word)
	row = append(row, FormatFeatures(features)...)
	row = append(row, strconv.Itoa(int(label)))

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

// Close flushes and closes the underlying file, if any.
func (l *FeatureLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if l.c != nil {
		return l.c.Close()
	}
	return l.w.Error()
}
