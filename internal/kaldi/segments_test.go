package kaldi

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/AcousticDER/internal/model"
)

func TestUttID(t *testing.T) {
	tests := []struct {
		start, end float64
		want       string
	}{
		{0, 1.5, "rec-0000000-0001500"},
		{12.3456, 15.1, "rec-0012346-0015100"},
		{1234.5, 12345.678, "rec-1234500-12345678"},
	}
	for _, tt := range tests {
		if got := UttID("rec", tt.start, tt.end); got != tt.want {
			t.Errorf("UttID(%v, %v) = %q, expected %q", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestFromAnnotationSkipsOverlap(t *testing.T) {
	a := model.NewAnnotation("lab")
	a.Add(0.5, 2.0, model.DefaultLabel)
	a.Add(1.5, 3.0, model.DefaultLabel) // starts inside the previous segment
	a.Add(2.0, 4.25, model.DefaultLabel)

	segs := FromAnnotation("meeting", a)
	if len(segs) != 2 {
		t.Fatalf("Expected 2 segments, got %d: %v", len(segs), segs)
	}

	var buf bytes.Buffer
	if err := Write(&buf, segs); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	want := "meeting-0000500-0002000 meeting 0.500 2.000\n" +
		"meeting-0002000-0004250 meeting 2.000 4.250\n"
	if buf.String() != want {
		t.Errorf("Unexpected output:\n%s\nexpected:\n%s", buf.String(), want)
	}
}

func TestWriteFileAndParse(t *testing.T) {
	a := model.NewAnnotation("x")
	a.Add(0, 1, model.DefaultLabel)
	a.Add(2, 3.5, model.DefaultLabel)

	path := filepath.Join(t.TempDir(), "out", "segments")
	if err := WriteFile(path, FromAnnotation("rec1", a)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := Parse(f)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rec := got["rec1"]
	if rec == nil || len(rec.Intervals) != 2 {
		t.Fatalf("Expected 2 intervals for rec1, got %+v", got)
	}
	if rec.Intervals[1].Start != 2 || rec.Intervals[1].End != 3.5 {
		t.Errorf("Unexpected interval: %v", rec.Intervals[1])
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"utt rec 1.0\n",
		"utt rec a 2\n",
		"utt rec 3 2\n",
	} {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}
