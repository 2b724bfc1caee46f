package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const Schema = `CREATE TABLE IF NOT EXISTS shopctl_outbox (
	id         BIGSERIAL PRIMARY KEY,
	event_id   TEXT NOT NULL UNIQUE,
	topic      TEXT NOT NULL,
	key        TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	sent_at    TIMESTAMPTZ
)`

type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   []byte          `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// DB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres and checks the connection.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// Insert journals one event. A duplicate event id is not an error.
func (s *Store) Insert(ctx context.Context, eventID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO shopctl_outbox(event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`, eventID, topic, key, data)
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `UPDATE shopctl_outbox SET sent_at=now() WHERE id=$1`, id)
	return err
}

func (s *Store) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT id, event_id, topic, key, payload, created_at, sent_at FROM shopctl_outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type pending interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

// Relay publishes pending records in id order and marks each one sent.
// It stops at the first publish failure so ordering is kept.
func Relay(ctx context.Context, store pending, batch int, publish func(context.Context, Record) error) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	sent := 0
	for {
		recs, err := store.FetchPending(ctx, batch)
		if err != nil {
			return sent, err
		}
		if len(recs) == 0 {
			return sent, nil
		}
		for _, rec := range recs {
			if err := publish(ctx, rec); err != nil {
				return sent, fmt.Errorf("publish %s: %w", rec.EventID, err)
			}
			if err := store.MarkSent(ctx, rec.ID); err != nil {
				return sent, err
			}
			sent++
		}
		if len(recs) < batch {
			return sent, nil
		}
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
