package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows map[string][]Message
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, msgs := range rows {
			if id == "" {
				continue
			}
			s.byConv[id] = msgs
		}
	})
}

// saveFile rewrites the whole data file. Only the writer goroutine calls it,
// so writes never interleave.
func (s *Store) saveFile() error {
	s.mu.RLock()
	rows := make(map[string][]Message, len(s.byConv))
	for id, msgs := range s.byConv {
		rows[id] = msgs
	}
	s.mu.RUnlock()

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, b, 0o644)
}

func (s *Store) appendFile(conversationID string, msg Message) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	s.byConv[conversationID] = append(s.byConv[conversationID], msg)
	s.mu.Unlock()
	return s.saveFile()
}

func (s *Store) clearFile(conversationID string) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	delete(s.byConv, conversationID)
	s.mu.Unlock()
	return s.saveFile()
}

func (s *Store) messagesFile(conversationID string) ([]Message, error) {
	s.ensureLoadedFile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.byConv[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *Store) conversationsFile() ([]string, error) {
	s.ensureLoadedFile()
	s.mu.RLock()
	ids := make([]string, 0, len(s.byConv))
	for id := range s.byConv {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}
