package conversation

import (
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned for writes against a closed store.
var ErrClosed = errors.New("conversation: store is closed")

// Store persists conversations in one of three backends: a JSON file (the
// default), SQLite, or Postgres. All mutations flow through a single writer
// goroutine, so concurrent saves serialize instead of interleaving into a
// corrupted list; history is append-only apart from an explicit Clear.
type Store struct {
	path    string
	db      *sql.DB
	dialect string // "sqlite" or "postgres"; empty for the file backend

	loadOnce sync.Once
	mu       sync.RWMutex
	byConv   map[string][]Message

	schemaOnce sync.Once
	schemaErr  error

	reqCh   chan request
	doneCh  chan struct{}
	closeMu sync.RWMutex
	closed  bool
}

type opKind int

const (
	opAppend opKind = iota
	opClear
)

type request struct {
	op   opKind
	conv string
	msg  Message
	done chan error
}

// New creates a file-backed store at path.
func New(path string) *Store {
	s := &Store{
		path:   path,
		byConv: make(map[string][]Message),
	}
	s.start()
	return s
}

// NewSQLite creates a SQLite-backed store at path.
func NewSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, dialect: "sqlite"}
	s.start()
	return s, nil
}

// NewPostgres creates a Postgres-backed store for the given DSN.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, dialect: "postgres"}
	s.start()
	return s, nil
}

// NewFromEnv picks the backend from the environment: CONVERSATION_PG_DSN,
// then CONVERSATION_SQLITE_PATH, then the JSON file at path. A backend that
// fails to open falls back to the file store.
func NewFromEnv(path string) *Store {
	if dsn := strings.TrimSpace(os.Getenv("CONVERSATION_PG_DSN")); dsn != "" {
		if s, err := NewPostgres(dsn); err == nil {
			return s
		}
	}
	if p := strings.TrimSpace(os.Getenv("CONVERSATION_SQLITE_PATH")); p != "" {
		if s, err := NewSQLite(p); err == nil {
			return s
		}
	}
	return New(path)
}

// Kind names the active backend for status reporting.
func (s *Store) Kind() string {
	if s.dialect != "" {
		return s.dialect
	}
	return "file"
}

func (s *Store) start() {
	s.reqCh = make(chan request, 16)
	s.doneCh = make(chan struct{})
	go s.run()
}

// run is the single writer. One request at a time, in arrival order.
func (s *Store) run() {
	defer close(s.doneCh)
	for req := range s.reqCh {
		req.done <- s.apply(req)
	}
}

func (s *Store) apply(req request) error {
	switch req.op {
	case opAppend:
		if s.db != nil {
			return s.appendDB(req.conv, req.msg)
		}
		return s.appendFile(req.conv, req.msg)
	case opClear:
		if s.db != nil {
			return s.clearDB(req.conv)
		}
		return s.clearFile(req.conv)
	default:
		return errors.New("conversation: unknown store operation")
	}
}

func (s *Store) do(req request) error {
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return ErrClosed
	}
	s.reqCh <- req
	s.closeMu.RUnlock()
	return <-req.done
}

// Append adds one message to the end of a conversation.
func (s *Store) Append(conversationID string, msg Message) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return errors.New("conversation: id is required")
	}
	normalized, ok := normalizeMessage(msg)
	if !ok {
		return errors.New("conversation: invalid message")
	}
	return s.do(request{op: opAppend, conv: conversationID, msg: normalized, done: make(chan error, 1)})
}

// Clear removes a conversation entirely. Only an explicit user action calls
// this; nothing else ever rewrites history.
func (s *Store) Clear(conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return errors.New("conversation: id is required")
	}
	return s.do(request{op: opClear, conv: conversationID, done: make(chan error, 1)})
}

// Messages returns a conversation's messages in append order.
func (s *Store) Messages(conversationID string) ([]Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, errors.New("conversation: id is required")
	}
	if s.db != nil {
		return s.messagesDB(conversationID)
	}
	return s.messagesFile(conversationID)
}

// Conversations lists the stored conversation IDs in lexical order.
func (s *Store) Conversations() ([]string, error) {
	if s.db != nil {
		return s.conversationsDB()
	}
	return s.conversationsFile()
}

func (s *Store) appendDB(conversationID string, msg Message) error {
	if s.dialect == "postgres" {
		return s.appendPostgres(conversationID, msg)
	}
	return s.appendSQLite(conversationID, msg)
}

func (s *Store) clearDB(conversationID string) error {
	if s.dialect == "postgres" {
		return s.clearPostgres(conversationID)
	}
	return s.clearSQLite(conversationID)
}

func (s *Store) messagesDB(conversationID string) ([]Message, error) {
	if s.dialect == "postgres" {
		return s.messagesPostgres(conversationID)
	}
	return s.messagesSQLite(conversationID)
}

func (s *Store) conversationsDB() ([]string, error) {
	if s.dialect == "postgres" {
		return s.conversationsPostgres()
	}
	return s.conversationsSQLite()
}

// Close stops the writer and releases the backend. Pending writes finish
// first.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.reqCh)
	}
	s.closeMu.Unlock()
	<-s.doneCh
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
