// Package capture writes captured frames to CSV.
package capture

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"serial-app/internal/format"
	"serial-app/internal/session"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// Options configures how frames are exported to CSV.
type Options struct {
	FilePath          string
	IncludeTimestamps bool
	FilterByTime      bool
	StartTime         time.Time
	EndTime           time.Time
}

// Export writes the given frames to opts.FilePath.
func Export(frames []session.Frame, opts Options) error {
	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := Write(f, frames, opts); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Write encodes frames as CSV to w. Columns are Seq, Timestamp (optional),
// Hex and Text.
func Write(w io.Writer, frames []session.Frame, opts Options) error {
	cw := csv.NewWriter(w)

	header := []string{"Seq", "Hex", "Text"}
	if opts.IncludeTimestamps {
		header = []string{"Seq", "Timestamp", "Hex", "Text"}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, fr := range frames {
		if opts.FilterByTime {
			at := fr.Received()
			if at.Before(opts.StartTime) || (!opts.EndTime.IsZero() && at.After(opts.EndTime)) {
				continue
			}
		}

		data := fr.Bytes()
		record := []string{strconv.FormatUint(fr.Seq(), 10)}
		if opts.IncludeTimestamps {
			record = append(record, fr.Received().Format(timestampLayout))
		}
		record = append(record, format.HexString(data), format.UTFString(data))

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv writer: %w", err)
	}
	return nil
}
