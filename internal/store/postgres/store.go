// Package postgres provides the Postgres-backed Store implementation.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"github.com/JakeFAU/ec-listings-pipeline/internal/metrics"
	"github.com/JakeFAU/ec-listings-pipeline/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for listing rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// lockStripes sizes the fixed set of upsert mutexes. Keys hash onto a
// stripe, so memory stays constant no matter how many identity keys a
// long-lived store sees.
const lockStripes = 64

// Store persists business records in Postgres with a uniqueness
// constraint on identity_key.
type Store struct {
	pool  dbPool
	table string
	clock listing.Clock

	locks [lockStripes]sync.Mutex
}

// New connects a pool and returns a Store. The caller owns Close.
func New(ctx context.Context, cfg Config, clock listing.Clock) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "business_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newWithPool(pool, table, clock), nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool dbPool, table string, clock listing.Clock) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "business_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return newWithPool(pool, table, clock), nil
}

func newWithPool(pool dbPool, table string, clock listing.Clock) *Store {
	return &Store{
		pool:  pool,
		table: table,
		clock: clock,
	}
}

// EnsureSchema creates the records table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	identity_key     TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	postal_code      TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	website          TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	corporate_number TEXT NOT NULL DEFAULT '',
	representative   TEXT NOT NULL DEFAULT '',
	established_date TEXT NOT NULL DEFAULT '',
	employee_count   TEXT NOT NULL DEFAULT '',
	annual_sales     TEXT NOT NULL DEFAULT '',
	notes            TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	first_seen_at    TIMESTAMPTZ NOT NULL,
	last_seen_at     TIMESTAMPTZ NOT NULL,
	raw_snapshot     JSONB NOT NULL DEFAULT '{}'::jsonb
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Upsert inserts a new row for an unseen identity key or merges into
// the existing one. Upserts for the same key are serialized in-process;
// the primary-key constraint covers insert races from elsewhere, with
// the losing insert converted into a merge.
func (s *Store) Upsert(ctx context.Context, cand listing.Candidate) (listing.UpsertOutcome, error) {
	if cand.IdentityKey == "" {
		return "", listing.ErrIdentity
	}
	lock := s.keyLock(cand.IdentityKey)
	lock.Lock()
	defer lock.Unlock()

	now := s.clock.Now()

	existing, err := s.Get(ctx, cand.IdentityKey)
	if errors.Is(err, listing.ErrNotFound) {
		inserted, ierr := s.insert(ctx, store.NewRecord(cand, now))
		if ierr != nil {
			return "", ierr
		}
		if inserted {
			metrics.ObserveUpsert(string(listing.UpsertInserted))
			return listing.UpsertInserted, nil
		}
		// Lost an insert race; the winner's row exists now, merge into it.
		existing, err = s.Get(ctx, cand.IdentityKey)
	}
	if err != nil {
		return "", err
	}

	merged, changed := store.Merge(existing, cand, now)
	if !changed {
		if err := s.touch(ctx, cand.IdentityKey, now); err != nil {
			return "", err
		}
		metrics.ObserveUpsert(string(listing.UpsertMergedNoop))
		return listing.UpsertMergedNoop, nil
	}
	if err := s.update(ctx, merged); err != nil {
		return "", err
	}
	metrics.ObserveUpsert(string(listing.UpsertMergedChanged))
	return listing.UpsertMergedChanged, nil
}

func (s *Store) insert(ctx context.Context, rec listing.BusinessRecord) (bool, error) {
	snapshot, err := marshalSnapshot(rec.RawSnapshot)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	identity_key, name, address, postal_code, phone, email, website,
	category, corporate_number, representative, established_date,
	employee_count, annual_sales, notes, source_url,
	first_seen_at, last_seen_at, raw_snapshot
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (identity_key) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		rec.IdentityKey,
		rec.Name,
		rec.Address,
		rec.PostalCode,
		rec.Phone,
		rec.Email,
		rec.Website,
		rec.Category,
		rec.CorporateNumber,
		rec.Representative,
		rec.EstablishedDate,
		rec.EmployeeCount,
		rec.AnnualSales,
		rec.Notes,
		rec.SourceURL,
		rec.FirstSeenAt,
		rec.LastSeenAt,
		snapshot,
	)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) update(ctx context.Context, rec listing.BusinessRecord) error {
	snapshot, err := marshalSnapshot(rec.RawSnapshot)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	name = $2,
	address = $3,
	postal_code = $4,
	phone = $5,
	email = $6,
	website = $7,
	category = $8,
	corporate_number = $9,
	representative = $10,
	established_date = $11,
	employee_count = $12,
	annual_sales = $13,
	notes = $14,
	source_url = $15,
	last_seen_at = GREATEST(last_seen_at, $16),
	raw_snapshot = $17
WHERE identity_key = $1`, s.table)

	if _, err := s.pool.Exec(ctx, query,
		rec.IdentityKey,
		rec.Name,
		rec.Address,
		rec.PostalCode,
		rec.Phone,
		rec.Email,
		rec.Website,
		rec.Category,
		rec.CorporateNumber,
		rec.Representative,
		rec.EstablishedDate,
		rec.EmployeeCount,
		rec.AnnualSales,
		rec.Notes,
		rec.SourceURL,
		rec.LastSeenAt,
		snapshot,
	); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

func (s *Store) touch(ctx context.Context, identityKey string, now time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %s SET last_seen_at = GREATEST(last_seen_at, $2) WHERE identity_key = $1`,
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query, identityKey, now); err != nil {
		return fmt.Errorf("touch record: %w", err)
	}
	return nil
}

const recordColumns = `identity_key, name, address, postal_code, phone, email, website,
	category, corporate_number, representative, established_date,
	employee_count, annual_sales, notes, source_url,
	first_seen_at, last_seen_at, raw_snapshot`

// Get returns the record for an identity key.
func (s *Store) Get(ctx context.Context, identityKey string) (listing.BusinessRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE identity_key = $1`, recordColumns, s.table)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, identityKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return listing.BusinessRecord{}, listing.ErrNotFound
	}
	if err != nil {
		return listing.BusinessRecord{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// List returns records matching the filter, ordered by name then key.
func (s *Store) List(ctx context.Context, filter listing.ListFilter) ([]listing.BusinessRecord, error) {
	var (
		conds []string
		args  []any
	)
	if filter.NameContains != "" {
		args = append(args, "%"+filter.NameContains+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.PostalCode != "" {
		args = append(args, filter.PostalCode)
		conds = append(conds, fmt.Sprintf("postal_code = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT %s FROM %s`, recordColumns, s.table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, identity_key"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []listing.BusinessRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	var count int
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) keyLock(identityKey string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityKey))
	return &s.locks[h.Sum32()%lockStripes]
}

func scanRecord(row pgx.Row) (listing.BusinessRecord, error) {
	var (
		rec      listing.BusinessRecord
		snapshot []byte
	)
	err := row.Scan(
		&rec.IdentityKey,
		&rec.Name,
		&rec.Address,
		&rec.PostalCode,
		&rec.Phone,
		&rec.Email,
		&rec.Website,
		&rec.Category,
		&rec.CorporateNumber,
		&rec.Representative,
		&rec.EstablishedDate,
		&rec.EmployeeCount,
		&rec.AnnualSales,
		&rec.Notes,
		&rec.SourceURL,
		&rec.FirstSeenAt,
		&rec.LastSeenAt,
		&snapshot,
	)
	if err != nil {
		return listing.BusinessRecord{}, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &rec.RawSnapshot); err != nil {
			return listing.BusinessRecord{}, fmt.Errorf("unmarshal raw snapshot: %w", err)
		}
	}
	return rec, nil
}

func marshalSnapshot(snapshot map[listing.FieldKind]string) ([]byte, error) {
	if snapshot == nil {
		snapshot = map[listing.FieldKind]string{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal raw snapshot: %w", err)
	}
	return data, nil
}
