package assistant

import (
	"database/sql"
	"time"

	"soilchat/internal/redis"
	"soilchat/internal/storage"

	"go.uber.org/zap"
)

// DefaultHistoryLimit is used when callers pass a non-positive limit.
const DefaultHistoryLimit = 50

// Service persists chat sessions and their transcripts.
type Service struct {
	db      *sql.DB
	dialect storage.Dialect
	cache   *historyCache
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Service)

// WithHistoryCache caches History results in redis for ttl.
func WithHistoryCache(client *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		if client != nil {
			s.cache = &historyCache{client: client, ttl: ttl}
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService builds a session store over an already migrated database.
func NewService(db *sql.DB, dialect storage.Dialect, opts ...Option) *Service {
	s := &Service{
		db:      db,
		dialect: dialect,
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil {
		s.cache.logger = s.logger
	}
	return s
}

func (s *Service) q(query string) string {
	return storage.Rebind(s.dialect, query)
}

// insertSessionSQL inserts a session row unless the id already exists.
func (s *Service) insertSessionSQL() string {
	switch s.dialect {
	case storage.DialectMySQL:
		return `INSERT IGNORE INTO sessions (session_id, created_at, last_activity) VALUES (?, ?, ?)`
	case storage.DialectPostgres:
		return `INSERT INTO sessions (session_id, created_at, last_activity) VALUES ($1, $2, $3) ON CONFLICT (session_id) DO NOTHING`
	default:
		return `INSERT OR IGNORE INTO sessions (session_id, created_at, last_activity) VALUES (?, ?, ?)`
	}
}
