package store

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// Postgres implements Store over a postgres ledger. Reference tables (keys,
// employees) go through a read cache; custody entries are always read fresh.
// onChange, if set, is poked after every custody mutation so the status
// board can refresh.
type Postgres struct {
	db       *sql.DB
	cache    *refCache
	onChange func()
}

// NewPostgres connects and pings. onChange may be nil.
func NewPostgres(connStr string, cacheTTL time.Duration, onChange func()) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, mapError(err)
	}
	if err := db.Ping(); err != nil {
		return nil, mapError(err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return &Postgres{db: db, cache: newRefCache(cacheTTL), onChange: onChange}, nil
}

// Setup creates the ledger tables when they do not exist yet.
func (p *Postgres) Setup(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS custody_entries (
			id SERIAL PRIMARY KEY,
			key_name TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			returned_at TIMESTAMPTZ,
			comment TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS key_references (
			key_name TEXT PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			id SERIAL PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			roles TEXT NOT NULL DEFAULT 'user'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) changed() {
	if p.onChange != nil {
		go p.onChange()
	}
}

func (p *Postgres) AppendCustodyEntry(ctx context.Context, e CustodyEntry) (RowRef, error) {
	query := `INSERT INTO custody_entries (key_name, first_name, last_name, phone, received_at, returned_at, comment)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	var id int64
	err := p.db.QueryRowContext(ctx, query,
		e.Key, e.FirstName, e.LastName, e.Phone, e.ReceivedAt, e.ReturnedAt, e.Comment).Scan(&id)
	if err != nil {
		log.Printf("Error inserting custody entry for key %s: %v", e.Key, err)
		return 0, mapError(err)
	}

	p.changed()
	return RowRef(id), nil
}

func (p *Postgres) ListCustodyEntries(ctx context.Context) ([]CustodyEntry, error) {
	return p.listEntries(ctx, `SELECT id, key_name, first_name, last_name, phone, received_at, returned_at, comment
              FROM custody_entries ORDER BY id`)
}

func (p *Postgres) ListOpenCustodyEntries(ctx context.Context) ([]CustodyEntry, error) {
	return p.listEntries(ctx, `SELECT id, key_name, first_name, last_name, phone, received_at, returned_at, comment
              FROM custody_entries WHERE returned_at IS NULL ORDER BY id`)
}

func (p *Postgres) listEntries(ctx context.Context, query string) ([]CustodyEntry, error) {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []CustodyEntry
	for rows.Next() {
		var e CustodyEntry
		var returned sql.NullTime
		err := rows.Scan(&e.Row, &e.Key, &e.FirstName, &e.LastName, &e.Phone,
			&e.ReceivedAt, &returned, &e.Comment)
		if err != nil {
			return nil, mapError(err)
		}
		if returned.Valid {
			t := returned.Time
			e.ReturnedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, mapError(rows.Err())
}

func (p *Postgres) SetReturnedAt(ctx context.Context, ref RowRef, at time.Time) error {
	query := `UPDATE custody_entries SET returned_at = $1 WHERE id = $2`
	result, err := p.db.ExecContext(ctx, query, at, int64(ref))
	if err != nil {
		return mapError(err)
	}

	rows, _ := result.RowsAffected()
	log.Printf("Set return time for row %d, affected rows: %d", ref, rows)

	p.changed()
	return nil
}

func (p *Postgres) ListKeyReferences(ctx context.Context) ([]KeyReference, error) {
	return p.cache.keys(func() ([]KeyReference, error) {
		rows, err := p.db.QueryContext(ctx, `SELECT key_name, count FROM key_references ORDER BY key_name`)
		if err != nil {
			return nil, mapError(err)
		}
		defer rows.Close()

		var refs []KeyReference
		for rows.Next() {
			var r KeyReference
			if err := rows.Scan(&r.Key, &r.Count); err != nil {
				return nil, mapError(err)
			}
			refs = append(refs, r)
		}
		return refs, mapError(rows.Err())
	})
}

func (p *Postgres) ListEmployees(ctx context.Context) ([]Employee, error) {
	return p.cache.employees(func() ([]Employee, error) {
		rows, err := p.db.QueryContext(ctx, `SELECT first_name, last_name, phone, chat_id, roles FROM employees ORDER BY id`)
		if err != nil {
			return nil, mapError(err)
		}
		defer rows.Close()

		var emps []Employee
		for rows.Next() {
			var e Employee
			var roles string
			if err := rows.Scan(&e.FirstName, &e.LastName, &e.Phone, &e.ChatID, &roles); err != nil {
				return nil, mapError(err)
			}
			e.Roles = ParseRoles(roles)
			emps = append(emps, e)
		}
		return emps, mapError(rows.Err())
	})
}

func (p *Postgres) AppendEmployee(ctx context.Context, emp Employee) error {
	query := `INSERT INTO employees (first_name, last_name, phone, chat_id, roles)
              VALUES ($1, $2, $3, $4, $5)`
	_, err := p.db.ExecContext(ctx, query,
		emp.FirstName, emp.LastName, emp.Phone, emp.ChatID, JoinRoles(emp.Roles))
	if err != nil {
		log.Printf("Error inserting employee %s %s: %v", emp.FirstName, emp.LastName, err)
		return mapError(err)
	}

	p.cache.Invalidate()
	return nil
}

// InvalidateCache drops the reference-table cache. Administrative hook.
func (p *Postgres) InvalidateCache() { p.cache.Invalidate() }

// DumpCache renders the cached reference tables for inspection.
func (p *Postgres) DumpCache() string { return p.cache.Dump() }
