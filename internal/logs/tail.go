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

const maxLineBytes = 1024 * 1024

// PollInterval is how often Follow checks the file for growth.
var PollInterval = 250 * time.Millisecond

// Last returns up to n trailing lines of path and the byte offset of the end
// of the file. A missing file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var window []string
	end, err := scanLines(file, func(line string) {
		if n <= 0 {
			return
		}
		if len(window) == n {
			window = window[1:]
		}
		window = append(window, line)
	})
	if err != nil {
		return nil, 0, err
	}
	return window, end, nil
}

// Follow calls emit for each complete line appended to path after offset
// until ctx is cancelled. A truncated or rotated file restarts from the top.
func Follow(ctx context.Context, path string, offset int64, emit func(string)) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
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
	if info.Size() == offset {
		return offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	// Only whole lines are emitted; a trailing partial line is re-read on the
	// next poll.
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		emit(trimEOL(line))
	}
}

func scanLines(r io.Reader, fn func(string)) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var consumed int64
	for scanner.Scan() {
		fn(scanner.Text())
		consumed += int64(len(scanner.Bytes())) + 1
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	if seeker, ok := r.(io.Seeker); ok {
		end, err := seeker.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, fmt.Errorf("seek log file: %w", err)
		}
		return end, nil
	}
	return consumed, nil
}

func trimEOL(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
