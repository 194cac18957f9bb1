package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/sqldb"
)

// SQL is a Backend over PostgreSQL or SQLite. Both share the schema in
// migrations/, with JSONB bodies on PostgreSQL and TEXT on SQLite.
type SQL struct {
	db *sqldb.DB
}

// NewSQL wraps an open database whose schema is already migrated.
func NewSQL(db *sqldb.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.DB.ExecContext(ctx, s.db.Rebind(query), args...)
}

func (s *SQL) Insert(ctx context.Context, kind Kind, r Record) error {
	res, err := s.exec(ctx,
		`INSERT INTO resources (kind, name, parent, collection, body, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kind, name) DO NOTHING`,
		string(kind), r.Name, r.Parent, r.Collection, string(r.Body), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting %s %q: %w", kind, r.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting %s %q: %w", kind, r.Name, err)
	}
	if n == 0 {
		return alreadyExists(kind, r.Name)
	}
	return nil
}

func (s *SQL) Upsert(ctx context.Context, kind Kind, r Record) error {
	_, err := s.exec(ctx,
		`INSERT INTO resources (kind, name, parent, collection, body, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kind, name) DO UPDATE SET
		   parent = excluded.parent,
		   collection = excluded.collection,
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		string(kind), r.Name, r.Parent, r.Collection, string(r.Body), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting %s %q: %w", kind, r.Name, err)
	}
	return nil
}

func (s *SQL) Update(ctx context.Context, kind Kind, r Record) error {
	res, err := s.exec(ctx,
		`UPDATE resources SET parent = ?, collection = ?, body = ?, updated_at = ?
		 WHERE kind = ? AND name = ?`,
		r.Parent, r.Collection, string(r.Body), time.Now().UTC(), string(kind), r.Name,
	)
	if err != nil {
		return fmt.Errorf("updating %s %q: %w", kind, r.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s %q: %w", kind, r.Name, err)
	}
	if n == 0 {
		return notFound(kind, r.Name)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, kind Kind, name string) (Record, error) {
	var (
		r    Record
		body string
	)
	err := s.db.DB.QueryRowContext(ctx, s.db.Rebind(
		`SELECT name, parent, collection, body FROM resources WHERE kind = ? AND name = ?`),
		string(kind), name,
	).Scan(&r.Name, &r.Parent, &r.Collection, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, notFound(kind, name)
	}
	if err != nil {
		return Record{}, fmt.Errorf("getting %s %q: %w", kind, name, err)
	}
	r.Body = []byte(body)
	return r, nil
}

func (s *SQL) List(ctx context.Context, kind Kind, f Filter) ([]Record, error) {
	query := `SELECT name, parent, collection, body FROM resources WHERE kind = ?`
	args := []any{string(kind)}
	if f.Parent != "" {
		query += ` AND parent = ?`
		args = append(args, f.Parent)
	}
	if f.Collection != "" {
		query += ` AND collection = ?`
		args = append(args, f.Collection)
	}
	query += ` ORDER BY name`

	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r    Record
			body string
		)
		if err := rows.Scan(&r.Name, &r.Parent, &r.Collection, &body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", kind, err)
		}
		r.Body = []byte(body)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) Delete(ctx context.Context, kind Kind, name string) error {
	res, err := s.exec(ctx, `DELETE FROM resources WHERE kind = ? AND name = ?`, string(kind), name)
	if err != nil {
		return fmt.Errorf("deleting %s %q: %w", kind, name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s %q: %w", kind, name, err)
	}
	if n == 0 {
		return notFound(kind, name)
	}
	return nil
}

func (s *SQL) Purge(ctx context.Context, database string) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.db.Rebind(
			`DELETE FROM resources WHERE kind = ? AND name = ?`), string(KindDatabase), database)
		if err != nil {
			return fmt.Errorf("deleting database %q: %w", database, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("deleting database %q: %w", database, err)
		} else if n == 0 {
			return notFound(KindDatabase, database)
		}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`DELETE FROM resources WHERE kind <> ? AND parent = ?`), string(KindDatabase), database); err != nil {
			return fmt.Errorf("deleting resources of %q: %w", database, err)
		}
		if _, err := tx.ExecContext(ctx, s.db.Rebind(
			`DELETE FROM documents WHERE database_name = ?`), database); err != nil {
			return fmt.Errorf("deleting documents of %q: %w", database, err)
		}
		return nil
	})
}

func (s *SQL) PutDocuments(ctx context.Context, docs []Document) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(
			`INSERT INTO documents (database_name, collection, doc_id, data, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (database_name, collection, doc_id) DO UPDATE SET
			   data = excluded.data,
			   updated_at = excluded.updated_at`))
		if err != nil {
			return fmt.Errorf("preparing document insert: %w", err)
		}
		defer stmt.Close()
		for _, d := range docs {
			if _, err := stmt.ExecContext(ctx, d.Database, d.Collection, d.ID, string(d.Data), d.UpdateTime.UTC()); err != nil {
				return fmt.Errorf("writing document %s/%s: %w", d.Collection, d.ID, err)
			}
		}
		return nil
	})
}

// collectionClause renders the collection restriction for the dialect:
// "= ANY(?)" with a pq.Array on PostgreSQL, an IN list on SQLite.
func (s *SQL) collectionClause(collections []string) (string, []any) {
	if len(collections) == 0 {
		return "", nil
	}
	if s.db.Dialect() == sqldb.Postgres {
		return ` AND collection = ANY(?)`, []any{pq.Array(collections)}
	}
	args := make([]any, len(collections))
	for i, c := range collections {
		args[i] = c
	}
	return ` AND collection IN (?` + strings.Repeat(`, ?`, len(collections)-1) + `)`, args
}

func (s *SQL) ListDocuments(ctx context.Context, database string, collections []string) ([]Document, error) {
	clause, extra := s.collectionClause(collections)
	query := `SELECT collection, doc_id, data, updated_at FROM documents WHERE database_name = ?` +
		clause + ` ORDER BY collection, doc_id`
	args := append([]any{database}, extra...)

	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents of %q: %w", database, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d := Document{Database: database}
		var data string
		if err := rows.Scan(&d.Collection, &d.ID, &data, &d.UpdateTime); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Data = []byte(data)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQL) DeleteDocuments(ctx context.Context, database string, collections []string) (int64, error) {
	clause, extra := s.collectionClause(collections)
	res, err := s.exec(ctx, `DELETE FROM documents WHERE database_name = ?`+clause,
		append([]any{database}, extra...)...)
	if err != nil {
		return 0, fmt.Errorf("deleting documents of %q: %w", database, err)
	}
	return res.RowsAffected()
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *SQL) Close() error { return s.db.Close() }
