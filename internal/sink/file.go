package sink

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// FileSink appends one line per record to a flat file, the default
// destination named by the CLI's required positional output path.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewFileSink opens (creating if needed) path for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: opening %s: %w", path, err)
	}

	return &FileSink{
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

// Append writes line followed by a newline and flushes immediately, so a
// crash between captures never loses an already-decoded record.
func (s *FileSink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.WriteString(line); err != nil {
		return fmt.Errorf("sink: writing record: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: writing record: %w", err)
	}
	return s.writer.Flush()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("sink: flushing on close: %w", err)
	}
	return s.file.Close()
}
