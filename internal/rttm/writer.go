package rttm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/himanishpuri/AcousticDER/internal/model"
	"github.com/himanishpuri/AcousticDER/pkg/utils"
)

// Write emits a as SPEAKER records sorted by start time.
func Write(w io.Writer, a *model.Annotation) error {
	ivs := make([]model.Interval, len(a.Intervals))
	copy(ivs, a.Intervals)
	sort.SliceStable(ivs, func(i, j int) bool { return ivs[i].Start < ivs[j].Start })

	bw := bufio.NewWriter(w)
	for _, iv := range ivs {
		if _, err := fmt.Fprintf(bw, "SPEAKER %s 1 %.3f %.3f <NA> <NA> %s <NA> <NA>\n",
			a.URI, iv.Start, iv.Duration(), iv.Label); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes a to path, creating parent directories as needed.
func WriteFile(path string, a *model.Annotation) error {
	if err := utils.EnsureParentDir(path); err != nil {
		return &IOError{Path: path, Err: err}
	}
	fh, err := os.Create(path)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	if err := Write(fh, a); err != nil {
		fh.Close()
		return &IOError{Path: path, Err: err}
	}
	if err := fh.Close(); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}
