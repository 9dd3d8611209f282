package conversation

const postgresSchema = `
CREATE TABLE IF NOT EXISTS messages (
  id TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL,
  role TEXT NOT NULL,
  raw_content TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, id);
`

func (s *Store) ensureSchemaPostgres() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(postgresSchema)
	})
	return s.schemaErr
}

func (s *Store) appendPostgres(conversationID string, msg Message) error {
	if err := s.ensureSchemaPostgres(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, conversation_id, role, raw_content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, conversationID, string(msg.Role), msg.RawContent, msg.CreatedAt.UTC(),
	)
	return err
}

func (s *Store) clearPostgres(conversationID string) error {
	if err := s.ensureSchemaPostgres(); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	return err
}

func (s *Store) messagesPostgres(conversationID string) ([]Message, error) {
	if err := s.ensureSchemaPostgres(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT id, role, raw_content, created_at FROM messages WHERE conversation_id = $1 ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &role, &m.RawContent, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) conversationsPostgres() ([]string, error) {
	if err := s.ensureSchemaPostgres(); err != nil {
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
