package session

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the goose migrations creating the sessions table, for
// use with db.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// PostgresStore keeps sessions in the sessions table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `id, token, user_id, ip, user_agent, payload, created_at, last_active_at, expires_at`

func (p *PostgresStore) Create(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s.Values)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Token, s.UserID, s.IP, s.UserAgent, payload, s.CreatedAt, s.LastActiveAt, s.ExpiresAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, token string) (*Session, error) {
	var (
		s       Session
		payload []byte
	)
	err := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token).Scan(
		&s.ID, &s.Token, &s.UserID, &s.IP, &s.UserAgent, &payload, &s.CreatedAt, &s.LastActiveAt, &s.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &s.Values); err != nil {
		return nil, err
	}
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	if s.IsExpired() {
		return nil, ErrExpired
	}
	return &s, nil
}

func (p *PostgresStore) Update(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s.Values)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET token = $2, user_id = $3, ip = $4, user_agent = $5, payload = $6,
			last_active_at = $7, expires_at = $8 WHERE id = $1`,
		s.ID, s.Token, s.UserID, s.IP, s.UserAgent, payload, s.LastActiveAt, s.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// Prune deletes expired sessions. Schedule it with the scheduler.
func (p *PostgresStore) Prune(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var (
	_ Store  = (*PostgresStore)(nil)
	_ Pruner = (*PostgresStore)(nil)
)
