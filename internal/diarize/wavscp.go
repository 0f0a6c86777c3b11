package diarize

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one recording listed in a wav.scp file.
type Entry struct {
	ID   string
	Path string
}

// LoadWavScp reads a wav.scp file from disk.
func LoadWavScp(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	entries, err := ReadWavScp(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ReadWavScp accepts both "<id> <path>" lines and Kaldi piped lines of the
// form "<id> <cmd> <path> ...", taking the third field as the path.
func ReadWavScp(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		switch {
		case len(fields) == 0:
			continue
		case len(fields) == 1:
			return nil, fmt.Errorf("line %d: missing audio path for %q", lineNo, fields[0])
		case len(fields) == 2:
			entries = append(entries, Entry{ID: fields[0], Path: fields[1]})
		default:
			entries = append(entries, Entry{ID: fields[0], Path: fields[2]})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
