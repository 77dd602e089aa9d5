// SPDX-License-Identifier: MIT
package scoring

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFeatureHeader(t *testing.T) {
	got := strings.Join(FeatureHeader(3, "filename", "word"), ",")
	if want := "filename,word,f0,f1,f2,label"; got != want {
		t.Errorf("FeatureHeader() = %q, want %q", got, want)
	}
}

func TestFeatureLogAppend(t *testing.T) {
	var buf bytes.Buffer
	l := NewFeatureLog(&buf, 2, true)
	if err := l.Append("cat", []float64{1.5, -0.25}, Correct); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append("dog", []float64{1}, Incorrect); !errors.Is(err, ErrFeatureLength) {
		t.Errorf("Append() short = %v, want ErrFeatureLength", err)
	}

	want := "word,f0,f1,label\ncat,1.500000,-0.250000,1\n"
	if buf.String() != want {
		t.Errorf("log = %q, want %q", buf.String(), want)
	}
}

func TestOpenFeatureLogWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.csv")

	for _, word := range []string{"one", "two"} {
		l, err := OpenFeatureLog(path, 1)
		if err != nil {
			t.Fatalf("OpenFeatureLog() error = %v", err)
		}
		if err := l.Append(word, []float64{0}, Incorrect); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "word,f0,label\none,0.000000,0\ntwo,0.000000,0\n"
	if string(b) != want {
		t.Errorf("file = %q, want %q", b, want)
	}
}
