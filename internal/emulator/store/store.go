// Package store persists the emulator's resources: databases, indexes,
// fields, operations and the documents that jobs work on.
//
// Resources are kept as JSON bodies keyed by resource name. A Store wraps a
// Backend, either the in-memory map or a SQL database (PostgreSQL or
// SQLite) sharing one implementation.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// Kind names a resource table.
type Kind string

const (
	KindDatabase  Kind = "database"
	KindIndex     Kind = "index"
	KindField     Kind = "field"
	KindOperation Kind = "operation"
)

// Record is one stored resource. Parent is the project for databases and the
// database for everything else.
type Record struct {
	Name       string
	Parent     string
	Collection string
	Body       []byte
}

// Filter narrows List. An empty Collection matches every collection group.
type Filter struct {
	Parent     string
	Collection string
}

// Document is one document of a collection group.
type Document struct {
	Database   string          `json:"-"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	UpdateTime time.Time       `json:"updateTime"`
}

// Size is the encoded size of the document in bytes.
func (d *Document) Size() int64 {
	return int64(len(d.Collection) + len(d.ID) + len(d.Data))
}

// Backend is the storage primitive under Store. Implementations return
// errors wrapping apperrors.ErrNotFound and apperrors.ErrAlreadyExists.
type Backend interface {
	Insert(ctx context.Context, kind Kind, r Record) error
	Upsert(ctx context.Context, kind Kind, r Record) error
	Update(ctx context.Context, kind Kind, r Record) error
	Get(ctx context.Context, kind Kind, name string) (Record, error)
	// List returns matching records ordered by name.
	List(ctx context.Context, kind Kind, f Filter) ([]Record, error)
	Delete(ctx context.Context, kind Kind, name string) error
	// Purge removes a database record together with every resource and
	// document under it.
	Purge(ctx context.Context, database string) error

	PutDocuments(ctx context.Context, docs []Document) error
	// ListDocuments returns documents ordered by collection then ID. No
	// collections means all of them.
	ListDocuments(ctx context.Context, database string, collections []string) ([]Document, error)
	DeleteDocuments(ctx context.Context, database string, collections []string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Store reads and writes typed resources through a Backend.
type Store struct {
	backend Backend
}

// New wraps b.
func New(b Backend) *Store {
	return &Store{backend: b}
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

func notFound(kind Kind, name string) error {
	return apperrors.Newf(apperrors.ErrNotFound, "%s %q not found", kind, name)
}

func alreadyExists(kind Kind, name string) error {
	return apperrors.Newf(apperrors.ErrAlreadyExists, "%s %q already exists", kind, name)
}

func encode(kind Kind, name, parent, collection string, m proto.Message) (Record, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return Record{}, fmt.Errorf("encoding %s %q: %w", kind, name, err)
	}
	return Record{Name: name, Parent: parent, Collection: collection, Body: body}, nil
}

func decode[T any](r Record) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(r.Body, v); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", r.Name, err)
	}
	return v, nil
}

func decodeAll[T any](records []Record) ([]*T, error) {
	out := make([]*T, 0, len(records))
	for _, r := range records {
		v, err := decode[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ---------- Databases ----------

// CreateDatabase stores db under project.
func (s *Store) CreateDatabase(ctx context.Context, project string, db *proto.Database) error {
	r, err := encode(KindDatabase, db.Name, project, "", db)
	if err != nil {
		return err
	}
	return s.backend.Insert(ctx, KindDatabase, r)
}

func (s *Store) GetDatabase(ctx context.Context, name string) (*proto.Database, error) {
	r, err := s.backend.Get(ctx, KindDatabase, name)
	if err != nil {
		return nil, err
	}
	return decode[proto.Database](r)
}

// ListDatabases returns the databases of project ordered by name.
func (s *Store) ListDatabases(ctx context.Context, project string) ([]*proto.Database, error) {
	records, err := s.backend.List(ctx, KindDatabase, Filter{Parent: project})
	if err != nil {
		return nil, err
	}
	return decodeAll[proto.Database](records)
}

func (s *Store) UpdateDatabase(ctx context.Context, project string, db *proto.Database) error {
	r, err := encode(KindDatabase, db.Name, project, "", db)
	if err != nil {
		return err
	}
	return s.backend.Update(ctx, KindDatabase, r)
}

// DeleteDatabase removes a database with all of its indexes, fields,
// operations and documents.
func (s *Store) DeleteDatabase(ctx context.Context, name string) error {
	return s.backend.Purge(ctx, name)
}

// ---------- Indexes ----------

// CreateIndex stores idx. database and collection locate it for listing.
func (s *Store) CreateIndex(ctx context.Context, database, collection string, idx *proto.Index) error {
	r, err := encode(KindIndex, idx.Name, database, collection, idx)
	if err != nil {
		return err
	}
	return s.backend.Insert(ctx, KindIndex, r)
}

func (s *Store) GetIndex(ctx context.Context, name string) (*proto.Index, error) {
	r, err := s.backend.Get(ctx, KindIndex, name)
	if err != nil {
		return nil, err
	}
	return decode[proto.Index](r)
}

// ListIndexes returns the indexes of a collection group, or of every group
// when collection is empty.
func (s *Store) ListIndexes(ctx context.Context, database, collection string) ([]*proto.Index, error) {
	records, err := s.backend.List(ctx, KindIndex, Filter{Parent: database, Collection: collection})
	if err != nil {
		return nil, err
	}
	return decodeAll[proto.Index](records)
}

func (s *Store) UpdateIndex(ctx context.Context, database, collection string, idx *proto.Index) error {
	r, err := encode(KindIndex, idx.Name, database, collection, idx)
	if err != nil {
		return err
	}
	return s.backend.Update(ctx, KindIndex, r)
}

func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	return s.backend.Delete(ctx, KindIndex, name)
}

// ---------- Fields ----------

// PutField stores the explicit configuration of a field, replacing any
// previous one.
func (s *Store) PutField(ctx context.Context, database, collection string, f *proto.Field) error {
	r, err := encode(KindField, f.Name, database, collection, f)
	if err != nil {
		return err
	}
	return s.backend.Upsert(ctx, KindField, r)
}

func (s *Store) GetField(ctx context.Context, name string) (*proto.Field, error) {
	r, err := s.backend.Get(ctx, KindField, name)
	if err != nil {
		return nil, err
	}
	return decode[proto.Field](r)
}

func (s *Store) ListFields(ctx context.Context, database, collection string) ([]*proto.Field, error) {
	records, err := s.backend.List(ctx, KindField, Filter{Parent: database, Collection: collection})
	if err != nil {
		return nil, err
	}
	return decodeAll[proto.Field](records)
}

func (s *Store) DeleteField(ctx context.Context, name string) error {
	return s.backend.Delete(ctx, KindField, name)
}

// ---------- Operations ----------

// CreateOperation stores a new operation of database.
func (s *Store) CreateOperation(ctx context.Context, database string, op *proto.Operation) error {
	r, err := encode(KindOperation, op.Name, database, "", op)
	if err != nil {
		return err
	}
	return s.backend.Insert(ctx, KindOperation, r)
}

// SaveOperation overwrites the stored state of an existing operation.
func (s *Store) SaveOperation(ctx context.Context, database string, op *proto.Operation) error {
	r, err := encode(KindOperation, op.Name, database, "", op)
	if err != nil {
		return err
	}
	return s.backend.Update(ctx, KindOperation, r)
}

func (s *Store) GetOperation(ctx context.Context, name string) (*proto.Operation, error) {
	r, err := s.backend.Get(ctx, KindOperation, name)
	if err != nil {
		return nil, err
	}
	return decode[proto.Operation](r)
}

// ListOperations returns the operations of database, oldest first.
func (s *Store) ListOperations(ctx context.Context, database string) ([]*proto.Operation, error) {
	records, err := s.backend.List(ctx, KindOperation, Filter{Parent: database})
	if err != nil {
		return nil, err
	}
	return decodeAll[proto.Operation](records)
}

func (s *Store) DeleteOperation(ctx context.Context, name string) error {
	return s.backend.Delete(ctx, KindOperation, name)
}

// ---------- Documents ----------

// PutDocuments upserts docs into database.
func (s *Store) PutDocuments(ctx context.Context, database string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := make([]Document, len(docs))
	for i, d := range docs {
		d.Database = database
		if d.UpdateTime.IsZero() {
			d.UpdateTime = now
		}
		if len(d.Data) == 0 {
			d.Data = json.RawMessage("{}")
		}
		batch[i] = d
	}
	return s.backend.PutDocuments(ctx, batch)
}

func (s *Store) ListDocuments(ctx context.Context, database string, collections []string) ([]Document, error) {
	return s.backend.ListDocuments(ctx, database, collections)
}

func (s *Store) DeleteDocuments(ctx context.Context, database string, collections []string) (int64, error) {
	return s.backend.DeleteDocuments(ctx, database, collections)
}

// CollectionCounts returns the number of documents per collection group.
func (s *Store) CollectionCounts(ctx context.Context, database string) (map[string]int, error) {
	docs, err := s.backend.ListDocuments(ctx, database, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, d := range docs {
		counts[d.Collection]++
	}
	return counts, nil
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Collection != docs[j].Collection {
			return docs[i].Collection < docs[j].Collection
		}
		return docs[i].ID < docs[j].ID
	})
}
