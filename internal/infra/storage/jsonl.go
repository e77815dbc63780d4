package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	config "github.com/inference-gateway/desktop-agent/config"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
)

const (
	sessionFilePrefix = "session_"
	sessionFileSuffix = ".jsonl"
)

// JSONLStore writes one JSON object per line to session_<id>.jsonl
type JSONLStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONLStore creates the log directory and checks it is writable
func NewJSONLStore(cfg config.JSONLConfig) (*JSONLStore, error) {
	dir := cfg.Dir
	if strings.HasPrefix(dir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}
	if dir == "" {
		dir = "logs"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return nil, fmt.Errorf("log directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	return &JSONLStore{dir: dir}, nil
}

// SessionPath returns the file holding a session's events
func (s *JSONLStore) SessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionFilePrefix+sessionID+sessionFileSuffix)
}

func (s *JSONLStore) Append(ctx context.Context, event domain.SessionEvent) error {
	if strings.ContainsAny(event.SessionID, `/\`) || event.SessionID == "" {
		return fmt.Errorf("invalid session id %q", event.SessionID)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.SessionPath(event.SessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *JSONLStore) Load(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readFile(s.SessionPath(sessionID))
}

func (s *JSONLStore) readFile(path string) ([]domain.SessionEvent, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []domain.SessionEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var event domain.SessionEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), lineNo, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session log: %w", err)
	}
	return events, nil
}

func (s *JSONLStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var summaries []SessionSummary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, sessionFilePrefix) || !strings.HasSuffix(name, sessionFileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, sessionFilePrefix), sessionFileSuffix)
		events, err := s.readFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		summaries = append(summaries, summarize(id, events))
	}
	return sortAndLimit(summaries, limit), nil
}

func (s *JSONLStore) Health(ctx context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *JSONLStore) Close() error {
	return nil
}
