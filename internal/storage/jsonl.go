package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"curveSettle/internal/model"
)

// JsonlSink appends settlement events to a JSONL file. Rejected intents go to
// a sibling file next to it.
type JsonlSink struct {
	path       string
	rejectPath string
	mu         sync.Mutex
}

func NewJsonlSink(path, rejectPath string) *JsonlSink {
	return &JsonlSink{path: path, rejectPath: rejectPath}
}

func (s *JsonlSink) PutTradeEvents(events []model.TradeEvent) error {
	lines, err := marshalLines(events)
	if err != nil {
		return err
	}
	return s.append(s.path, lines)
}

func (s *JsonlSink) PutClaimEvents(events []model.ClaimEvent) error {
	lines, err := marshalLines(events)
	if err != nil {
		return err
	}
	return s.append(s.path, lines)
}

func (s *JsonlSink) PutStreamEvents(events []model.StreamEvent) error {
	lines, err := marshalLines(events)
	if err != nil {
		return err
	}
	return s.append(s.path, lines)
}

func (s *JsonlSink) PutRejects(rejects []model.RejectRecord) error {
	lines, err := marshalLines(rejects)
	if err != nil {
		return err
	}
	return s.append(s.rejectPath, lines)
}

func marshalLines[T any](records []T) ([][]byte, error) {
	lines := make([][]byte, 0, len(records))
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("marshal event: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *JsonlSink) append(path string, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
