package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filer/internal/logging"
)

const defaultPoll = 250 * time.Millisecond

// Options controls Tail.
type Options struct {
	// Lines is how many existing lines to print before following.
	Lines  int
	Follow bool
	Poll   time.Duration
	// Component keeps only lines logged by one component (watcher, organizer, ...).
	Component string
	// Contains keeps only lines containing this text, case-insensitively.
	Contains string
}

func (o Options) keep(line string) bool {
	if o.Component != "" && logging.LineComponent(line) != o.Component {
		return false
	}
	if o.Contains != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(o.Contains)) {
		return false
	}
	return true
}

// Tail writes the last opts.Lines matching lines of path to w. With Follow
// it keeps streaming appended lines until ctx ends, reopening the file when
// path is relinked to a new log (as filer.log is on every daemon start) or
// truncated.
func Tail(ctx context.Context, path string, w io.Writer, opts Options) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && opts.Follow {
			file, err = waitForFile(ctx, path, opts.poll())
		}
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
	}
	defer func() { file.Close() }()

	if err := writeLast(file, w, opts); err != nil {
		return err
	}
	if !opts.Follow {
		return nil
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(opts.poll())
	defer ticker.Stop()
	var partial strings.Builder
	for {
		if err := drain(reader, &partial, w, opts); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		reopen, err := replaced(path, file)
		if err != nil {
			return err
		}
		if reopen {
			next, err := os.Open(path)
			if err != nil {
				continue
			}
			file.Close()
			file = next
			reader.Reset(file)
			partial.Reset()
		}
	}
}

func (o Options) poll() time.Duration {
	if o.Poll <= 0 {
		return defaultPoll
	}
	return o.Poll
}

// writeLast prints the trailing matching lines and leaves file positioned at
// the end of the last complete line.
func writeLast(file *os.File, w io.Writer, opts Options) error {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	limit := opts.Lines
	var ring []string
	var consumed int64
	for scanner.Scan() {
		line := scanner.Text()
		consumed += int64(len(line)) + 1
		if limit <= 0 || !opts.keep(line) {
			continue
		}
		if len(ring) == limit {
			ring = ring[1:]
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	for _, line := range ring {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	// A trailing line without a newline is re-read while following.
	offset := min(consumed, info.Size())
	if info.Size() > 0 && consumed > info.Size() {
		offset = lastNewline(file, info.Size())
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}
	return nil
}

func lastNewline(file *os.File, size int64) int64 {
	const window = 64 * 1024
	start := max(size-window, 0)
	buf := make([]byte, size-start)
	if _, err := file.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return size
	}
	if i := strings.LastIndexByte(string(buf), '\n'); i >= 0 {
		return start + int64(i) + 1
	}
	return start
}

func drain(reader *bufio.Reader, partial *strings.Builder, w io.Writer, opts Options) error {
	for {
		chunk, err := reader.ReadString('\n')
		partial.WriteString(chunk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read log file: %w", err)
		}
		line := strings.TrimSuffix(partial.String(), "\n")
		partial.Reset()
		if !opts.keep(line) {
			continue
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
}

// replaced reports whether path now names a different file than the open
// one, or the open file shrank.
func replaced(path string, file *os.File) (bool, error) {
	current, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat log file: %w", err)
	}
	open, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat log file: %w", err)
	}
	if !os.SameFile(current, open) {
		return true, nil
	}
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, fmt.Errorf("determine log offset: %w", err)
	}
	return open.Size() < pos, nil
}

func waitForFile(ctx context.Context, path string, poll time.Duration) (*os.File, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		file, err := os.Open(path)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
}
