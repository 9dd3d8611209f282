package conversation

import "time"

// user_version is kept at 1 for forward migrations; the stored row shape
// stays readable as the unversioned original.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
  id TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL,
  role TEXT NOT NULL,
  raw_content TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, id);
PRAGMA user_version = 1;
`

func (s *Store) ensureSchemaSQLite() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(sqliteSchema)
	})
	return s.schemaErr
}

func (s *Store) appendSQLite(conversationID string, msg Message) error {
	if err := s.ensureSchemaSQLite(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, conversation_id, role, raw_content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, conversationID, string(msg.Role), msg.RawContent, msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) clearSQLite(conversationID string) error {
	if err := s.ensureSchemaSQLite(); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return err
}

func (s *Store) messagesSQLite(conversationID string) ([]Message, error) {
	if err := s.ensureSchemaSQLite(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT id, role, raw_content, created_at FROM messages WHERE conversation_id = ? ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role, createdAt string
		if err := rows.Scan(&m.ID, &role, &m.RawContent, &createdAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			m.CreatedAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) conversationsSQLite() ([]string, error) {
	if err := s.ensureSchemaSQLite(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT DISTINCT conversation_id FROM messages ORDER BY conversation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
