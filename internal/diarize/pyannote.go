package diarize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/AcousticDER/internal/model"
)

const (
	PyannoteName = "pyannote"

	defaultPyannoteURL     = "http://localhost:8000"
	defaultPyannoteTimeout = 600 * time.Second
)

type PyannoteConfig struct {
	BaseURL string
	// Token is sent as a bearer token, typically a Hugging Face access token.
	Token       string
	Timeout     time.Duration
	NumSpeakers int
	HTTPClient  *http.Client
}

// Pyannote talks to a pyannote.audio HTTP sidecar exposing /health and
// /diarize.
type Pyannote struct {
	cfg    PyannoteConfig
	client *http.Client
}

func NewPyannote(cfg PyannoteConfig) *Pyannote {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPyannoteURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultPyannoteTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Pyannote{cfg: cfg, client: client}
}

func (p *Pyannote) Name() string { return PyannoteName }

func (p *Pyannote) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *Pyannote) Diarize(ctx context.Context, audioPath string) ([]model.Segment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	// Stream the upload so large recordings are never held in memory.
	pr, pw := io.Pipe()
	defer pr.Close()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
		if err != nil {
			pw.CloseWithError(fmt.Errorf("create form file: %w", err))
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(fmt.Errorf("write audio data: %w", err))
			return
		}
		if p.cfg.NumSpeakers > 0 {
			if err := writer.WriteField("num_speakers", fmt.Sprintf("%d", p.cfg.NumSpeakers)); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/diarize", pr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("diarization error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result pyannoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("diarization error: %s", result.Error)
	}

	segments := make([]model.Segment, len(result.Segments))
	for i, seg := range result.Segments {
		segments[i] = model.Segment{Start: seg.StartTime, End: seg.EndTime, Speaker: seg.SpeakerID}
	}
	return segments, nil
}

type pyannoteResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}
