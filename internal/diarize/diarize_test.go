package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/AcousticDER/internal/model"
	"github.com/himanishpuri/AcousticDER/internal/rttm"
	"github.com/himanishpuri/AcousticDER/pkg/logger"
)

func newSidecar(t *testing.T, token string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/diarize", func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if !bytes.Equal(data, []byte("RIFF-fake-audio")) {
			http.Error(w, "unexpected upload", http.StatusBadRequest)
			return
		}
		if header.Filename == "empty.wav" {
			json.NewEncoder(w).Encode(map[string]any{"error": "no speech"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"num_speakers": 2,
			"segments": []map[string]any{
				{"speaker_id": "SPEAKER_00", "start_time": 0.0, "end_time": 1.5},
				{"speaker_id": "SPEAKER_01", "start_time": 1.2, "end_time": 3.0},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("RIFF-fake-audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPyannoteDiarize(t *testing.T) {
	srv := newSidecar(t, "hf_secret")
	p := NewPyannote(PyannoteConfig{BaseURL: srv.URL + "/", Token: "hf_secret"})

	if !p.IsAvailable(context.Background()) {
		t.Fatal("Expected sidecar to be available")
	}

	segs, err := p.Diarize(context.Background(), writeAudio(t, t.TempDir(), "a.wav"))
	if err != nil {
		t.Fatalf("Diarize failed: %v", err)
	}
	want := []model.Segment{
		{Start: 0, End: 1.5, Speaker: "SPEAKER_00"},
		{Start: 1.2, End: 3.0, Speaker: "SPEAKER_01"},
	}
	if len(segs) != len(want) {
		t.Fatalf("Expected %d segments, got %d", len(want), len(segs))
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, expected %+v", i, segs[i], want[i])
		}
	}
}

func TestPyannoteErrors(t *testing.T) {
	srv := newSidecar(t, "hf_secret")
	dir := t.TempDir()

	unauth := NewPyannote(PyannoteConfig{BaseURL: srv.URL})
	if _, err := unauth.Diarize(context.Background(), writeAudio(t, dir, "a.wav")); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Expected 401 error, got %v", err)
	}

	p := NewPyannote(PyannoteConfig{BaseURL: srv.URL, Token: "hf_secret"})
	if _, err := p.Diarize(context.Background(), writeAudio(t, dir, "empty.wav")); err == nil || !strings.Contains(err.Error(), "no speech") {
		t.Errorf("Expected backend error, got %v", err)
	}
	if _, err := p.Diarize(context.Background(), filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("Expected error for missing audio")
	}

	down := NewPyannote(PyannoteConfig{BaseURL: "http://127.0.0.1:1"})
	if down.IsAvailable(context.Background()) {
		t.Error("Expected unreachable backend to be unavailable")
	}
}

func TestReadWavScp(t *testing.T) {
	in := `
rec1 /data/rec1.wav
rec2 sox /data/rec2.flac -t wav - |

rec3 ./rec3.wav
`
	entries, err := ReadWavScp(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadWavScp failed: %v", err)
	}
	want := []Entry{
		{ID: "rec1", Path: "/data/rec1.wav"},
		{ID: "rec2", Path: "/data/rec2.flac"},
		{ID: "rec3", Path: "./rec3.wav"},
	}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d entries, got %v", len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, expected %+v", i, entries[i], want[i])
		}
	}

	if _, err := ReadWavScp(strings.NewReader("lonely\n")); err == nil {
		t.Error("Expected error for line without path")
	}
}

type fakeProvider struct {
	available bool
	segments  map[string][]model.Segment
}

func (f *fakeProvider) Name() string                         { return "fake" }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeProvider) Diarize(ctx context.Context, path string) ([]model.Segment, error) {
	segs, ok := f.segments[filepath.Base(path)]
	if !ok {
		return nil, errors.New("unknown file")
	}
	return segs, nil
}

func TestRunWritesRTTM(t *testing.T) {
	out := t.TempDir()
	p := &fakeProvider{
		available: true,
		segments: map[string][]model.Segment{
			"a.wav": {{Start: 0, End: 2, Speaker: "s0"}, {Start: 2, End: 3, Speaker: "s1"}},
			"b.wav": {{Start: 1, End: 4}},
		},
	}
	entries := []Entry{
		{ID: "a", Path: "/audio/a.wav"},
		{ID: "b", Path: "/audio/b.wav"},
		{ID: "c", Path: "/audio/c.wav"},
	}

	log := logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
	results, err := Run(context.Background(), p, entries, out, RunOptions{}, log)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Speakers != 2 || results[1].Speakers != 1 {
		t.Errorf("Unexpected speaker counts: %+v", results)
	}
	if results[2].Err == nil {
		t.Error("Expected error for unknown recording")
	}

	f, err := rttm.Load(filepath.Join(out, "b.rttm"), rttm.Options{})
	if err != nil {
		t.Fatalf("Loading written RTTM failed: %v", err)
	}
	ann := f.Annotation("b")
	if len(ann.Intervals) != 1 || ann.Intervals[0].Label != model.DefaultLabel {
		t.Errorf("Unexpected intervals: %v", ann.Intervals)
	}

	_, err = Run(context.Background(), p, entries, out, RunOptions{StopOnError: true}, log)
	if err == nil {
		t.Error("Expected StopOnError to surface the failure")
	}
}

func TestRunUnavailable(t *testing.T) {
	if _, err := Run(context.Background(), &fakeProvider{}, nil, t.TempDir(), RunOptions{}, nil); err == nil {
		t.Error("Expected error when backend is down")
	}
}
