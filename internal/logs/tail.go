package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	maxLineBytes = 1024 * 1024
	pollInterval = 250 * time.Millisecond
)

// Last returns up to limit trailing lines of path and the offset just past
// them. A missing file yields no lines and offset zero.
func Last(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, info.Size(), nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	offset, err := scanLines(file, func(line string) {
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, offset, nil
}

// Follow writes every complete line appended to path after offset to w until
// ctx is cancelled. A file that shrinks (rotation or truncation) is reread
// from the start.
func Follow(ctx context.Context, path string, offset int64, w io.Writer) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		next, err := copyFrom(path, offset, w)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func copyFrom(path string, offset int64, w io.Writer) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	var writeErr error
	consumed, err := scanLines(file, func(line string) {
		if writeErr == nil {
			_, writeErr = fmt.Fprintln(w, line)
		}
	})
	if err != nil {
		return offset, err
	}
	if writeErr != nil {
		return offset, writeErr
	}
	return offset + consumed, nil
}

// scanLines feeds complete lines from r to fn and returns the number of bytes
// those lines occupied. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		text := line[:len(line)-1]
		if len(text) > maxLineBytes {
			text = text[:maxLineBytes]
		}
		if n := len(text); n > 0 && text[n-1] == '\r' {
			text = text[:n-1]
		}
		fn(text)
	}
}
