package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// ErrNotWAV is returned for files that do not carry a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a WAV/RIFF file")

// Info describes the PCM stream of a WAV file.
type Info struct {
	Path       string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

func (i *Info) String() string {
	return fmt.Sprintf("%s: %d Hz, %d ch, %d bit, %.3fs",
		i.Path, i.SampleRate, i.Channels, i.BitDepth, i.Duration.Seconds())
}

// Probe reads the header of a WAV file.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}

	duration, err := decoder.Duration()
	if err != nil {
		return nil, fmt.Errorf("reading duration of %s: %w", path, err)
	}

	return &Info{
		Path:       path,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		Duration:   duration,
	}, nil
}

// Duration returns the length of a WAV file in seconds.
func Duration(path string) (float64, error) {
	info, err := Probe(path)
	if err != nil {
		return 0, err
	}
	return info.Duration.Seconds(), nil
}
