package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/bidsflow/bidsflow/pkg/bids"
)

// ErrNotFound is returned when a component is not in the index
var ErrNotFound = errors.New("index: component not found")

const (
	// DriverSQLite selects the embedded sqlite driver
	DriverSQLite = "sqlite"
	// DriverPostgres selects the pgx postgres driver
	DriverPostgres = "pgx"
)

// Config selects the database backing the index
type Config struct {
	Driver string
	DSN    string
}

// Store persists the entity rows of dataset components
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// Open connects to the configured database and creates the schema
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("index: unsupported driver %q", driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("index: dsn is required")
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	s := New(db, driver, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. The schema is not created.
func New(db *sql.DB, driver string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, driver: driver, logger: logger}
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS components (
		name TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		entities TEXT NOT NULL,
		revision TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		component TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		entity TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (component, row_index, entity)
	)`,
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index: migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for drivers that use numbered parameters
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Put stores a component, replacing any previous version. Every Put gives the
// component a new revision.
func (s *Store) Put(ctx context.Context, c bids.Component) error {
	if c.Name == "" {
		return fmt.Errorf("index: component name is required")
	}
	entities, err := json.Marshal(c.ZipList.Entities())
	if err != nil {
		return fmt.Errorf("index: encode entities %s: %w", c.Name, err)
	}
	revision := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.deleteTx(ctx, tx, c.Name); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO components (name, path, size, entities, revision) VALUES (?, ?, ?, ?, ?)`),
		c.Name, c.Path, c.ZipList.Len(), string(entities), revision,
	); err != nil {
		return fmt.Errorf("index: insert component %s: %w", c.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		s.rebind(`INSERT INTO entries (component, row_index, entity, value) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("index: prepare entries: %w", err)
	}
	defer stmt.Close()

	for _, entity := range c.ZipList.Entities() {
		for i, v := range c.ZipList.Values(entity) {
			if _, err := stmt.ExecContext(ctx, c.Name, i, entity, v); err != nil {
				return fmt.Errorf("index: insert entry %s[%d].%s: %w", c.Name, i, entity, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit %s: %w", c.Name, err)
	}

	s.logger.Debug("stored component",
		zap.String("component", c.Name),
		zap.String("revision", revision),
		zap.Int("entries", c.ZipList.Len()),
		zap.Strings("entities", c.ZipList.Entities()),
	)
	return nil
}

// Get loads a component by name
func (s *Store) Get(ctx context.Context, name string) (bids.Component, error) {
	var path, entities string
	var size int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT path, size, entities FROM components WHERE name = ?`), name,
	).Scan(&path, &size, &entities)
	if errors.Is(err, sql.ErrNoRows) {
		return bids.Component{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return bids.Component{}, fmt.Errorf("index: load component %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT entity, row_index, value FROM entries WHERE component = ? ORDER BY entity, row_index`), name)
	if err != nil {
		return bids.Component{}, fmt.Errorf("index: load entries %s: %w", name, err)
	}
	defer rows.Close()

	var names []string
	if err := json.Unmarshal([]byte(entities), &names); err != nil {
		return bids.Component{}, fmt.Errorf("index: decode entities %s: %w", name, err)
	}
	columns := make(map[string][]string, len(names))
	for _, entity := range names {
		columns[entity] = make([]string, size)
	}
	for rows.Next() {
		var entity, value string
		var i int
		if err := rows.Scan(&entity, &i, &value); err != nil {
			return bids.Component{}, fmt.Errorf("index: scan entry %s: %w", name, err)
		}
		if i < 0 || i >= size {
			return bids.Component{}, fmt.Errorf("index: entry %s[%d] outside %d rows", name, i, size)
		}
		col, ok := columns[entity]
		if !ok {
			return bids.Component{}, fmt.Errorf("index: entry %s[%d] has unknown entity %s", name, i, entity)
		}
		col[i] = value
	}
	if err := rows.Err(); err != nil {
		return bids.Component{}, fmt.Errorf("index: read entries %s: %w", name, err)
	}

	return bids.NewComponent(name, path, columns)
}

// Names lists the stored components, sorted
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM components ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("index: list components: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("index: scan component: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Revisions returns the current revision of each named component. Components
// that are not stored are absent from the result.
func (s *Store) Revisions(ctx context.Context, names []string) (map[string]string, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, revision FROM components`)
	if err != nil {
		return nil, fmt.Errorf("index: list revisions: %w", err)
	}
	defer rows.Close()

	revisions := make(map[string]string, len(names))
	for rows.Next() {
		var name, revision string
		if err := rows.Scan(&name, &revision); err != nil {
			return nil, fmt.Errorf("index: scan revision: %w", err)
		}
		if wanted[name] {
			revisions[name] = revision
		}
	}
	return revisions, rows.Err()
}

// Delete removes a component
func (s *Store) Delete(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.deleteTx(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) deleteTx(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM entries WHERE component = ?`), name); err != nil {
		return fmt.Errorf("index: delete entries %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM components WHERE name = ?`), name); err != nil {
		return fmt.Errorf("index: delete component %s: %w", name, err)
	}
	return nil
}

// Load builds a dataset from the named components, or from every stored
// component when no names are given
func (s *Store) Load(ctx context.Context, names ...string) (*bids.Dataset, error) {
	if len(names) == 0 {
		all, err := s.Names(ctx)
		if err != nil {
			return nil, err
		}
		names = all
	}

	components := make([]bids.Component, 0, len(names))
	for _, name := range names {
		c, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return bids.NewDataset(components...)
}
