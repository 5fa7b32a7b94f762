package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// DefaultDocumentName is the row name used when none is configured.
const DefaultDocumentName = "default"

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	queryInsertIfAbsent = `INSERT INTO credstore_documents (name, body) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	querySelectBody     = `SELECT body FROM credstore_documents WHERE name = $1`
	querySelectForWrite = `SELECT body FROM credstore_documents WHERE name = $1 FOR UPDATE`
	queryUpsertBody     = `INSERT INTO credstore_documents (name, body, updated_at) VALUES ($1, $2, now()) ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// PostgresBackend stores the document as one JSONB row. Apply locks the row
// with SELECT ... FOR UPDATE for the duration of the transaction.
type PostgresBackend struct {
	db     *sql.DB
	name   string
	ownsDB bool
}

// OpenPostgres connects with the pgx driver and returns a backend that closes
// the connection pool on Close.
func OpenPostgres(ctx context.Context, dsn, name string) (*PostgresBackend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := NewPostgresBackend(db, name)
	p.ownsDB = true
	return p, nil
}

// NewPostgresBackend wraps an existing pool. The caller owns db.
func NewPostgresBackend(db *sql.DB, name string) *PostgresBackend {
	if name == "" {
		name = DefaultDocumentName
	}
	return &PostgresBackend{db: db, name: name}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "migrations")
}

func (p *PostgresBackend) Init(ctx context.Context) error {
	if err := Migrate(ctx, p.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	data, err := NewDocument().Encode()
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, queryInsertIfAbsent, p.name, string(data)); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Load(ctx context.Context) (*Document, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, querySelectBody, p.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return Decode(body)
}

func (p *PostgresBackend) Apply(ctx context.Context, fn ApplyFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var body []byte
	err = tx.QueryRowContext(ctx, querySelectForWrite, p.name).Scan(&body)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("select document: %w", err)
	}

	doc, err := Decode(body)
	if err != nil {
		return err
	}

	changed, fnErr := fn(doc)
	if changed {
		data, err := doc.Encode()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryUpsertBody, p.name, string(data)); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return fnErr
}

func (p *PostgresBackend) Close() error {
	if p.ownsDB {
		return p.db.Close()
	}
	return nil
}
