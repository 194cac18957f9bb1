package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/export"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/runner"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

const (
	schemeFile = "file://"
	schemeGCS  = "gs://"
)

// exportLocation resolves an output or input URI prefix to a directory.
// file:// prefixes name a directory directly, which must lie inside the
// export root. gs://bucket/path prefixes live under
// <export root>/gs/bucket/path. A bare bucket, or an empty output prefix,
// gets a timestamped directory when stamp is set.
func (s *Service) exportLocation(db resource.DatabaseName, prefix string, stamp bool) (dir, uri string, err error) {
	now := s.now().UTC()
	ts := now.Format("2006-01-02T15:04:05") + fmt.Sprintf("_%05d", now.Nanosecond()/10000)
	switch {
	case prefix == "":
		if !stamp {
			return "", "", apperrors.New(apperrors.ErrInvalidArgument, "an input URI prefix is required")
		}
		dir = filepath.Join(s.cfg.ExportRoot, db.Project, db.Database, ts)
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", "", apperrors.Newf(apperrors.ErrInternal, "resolving export directory: %v", err)
		}
		return abs, schemeFile + filepath.ToSlash(abs), nil
	case strings.HasPrefix(prefix, schemeFile):
		path := strings.TrimPrefix(prefix, schemeFile)
		if !filepath.IsAbs(path) {
			return "", "", apperrors.Newf(apperrors.ErrInvalidArgument, "%q must name an absolute path", prefix)
		}
		root, err := filepath.Abs(s.cfg.ExportRoot)
		if err != nil {
			return "", "", apperrors.Newf(apperrors.ErrInternal, "resolving export root: %v", err)
		}
		path = filepath.Clean(path)
		if rel, err := filepath.Rel(root, path); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", "", apperrors.Newf(apperrors.ErrInvalidArgument, "%q is outside the export root %s", prefix, root)
		}
		return path, prefix, nil
	case strings.HasPrefix(prefix, schemeGCS):
		rest := strings.Trim(strings.TrimPrefix(prefix, schemeGCS), "/")
		bucket, path, _ := strings.Cut(rest, "/")
		if bucket == "" || strings.Contains(rest, "..") {
			return "", "", apperrors.Newf(apperrors.ErrInvalidArgument, "invalid bucket URI %q", prefix)
		}
		uri = schemeGCS + rest
		if path == "" && stamp {
			path = ts
			uri += "/" + ts
		}
		return filepath.Join(s.cfg.ExportRoot, "gs", bucket, filepath.FromSlash(path)), uri, nil
	}
	return "", "", apperrors.Newf(apperrors.ErrInvalidArgument, "unsupported URI prefix %q; use gs:// or file://", prefix)
}

func checkNamespaces(ids []string) error {
	for _, id := range ids {
		if id != "" && id != resource.DefaultDatabase {
			return apperrors.Newf(apperrors.ErrInvalidArgument, "namespace %q is not supported; only the default namespace exists", id)
		}
	}
	return nil
}

func checkCollectionIDs(ids []string) error {
	for _, id := range ids {
		if err := resource.ValidateCollectionID(id, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ExportDocuments(ctx context.Context, req *proto.ExportDocumentsRequest) (*proto.Operation, error) {
	name, err := resource.ParseDatabaseName(req.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, name); err != nil {
		return nil, err
	}
	if err := errors.Join(checkNamespaces(req.NamespaceIDs), checkCollectionIDs(req.CollectionIDs)); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "%v", err)
	}
	dir, uri, err := s.exportLocation(name, req.OutputURIPrefix, true)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(export.ManifestPath(dir)); err == nil {
		return nil, apperrors.Newf(apperrors.ErrAlreadyExists, "an export already exists at %s", uri)
	}
	_, statErr := os.Stat(dir)
	createdDir := errors.Is(statErr, fs.ErrNotExist)

	database := name.String()
	snapshot := s.now()
	if req.SnapshotTime != nil {
		snapshot = *req.SnapshotTime
	}
	meta := &proto.ExportDocumentsMetadata{
		CollectionIDs:   req.CollectionIDs,
		OutputURIPrefix: uri,
		NamespaceIDs:    req.NamespaceIDs,
		SnapshotTime:    proto.Timestamp(snapshot),
	}
	return s.start(ctx, runner.Spec{
		Kind:     "ExportDocuments",
		Database: database,
		Metadata: meta,
		Run: func(ctx context.Context, p *runner.Progress) (proto.Message, error) {
			collections, err := s.collections(ctx, database, req.CollectionIDs)
			if err != nil {
				return nil, err
			}
			docs, err := s.store.ListDocuments(ctx, database, collections)
			if err != nil {
				return nil, err
			}
			byCollection := make(map[string][]store.Document, len(collections))
			var bytes int64
			for _, d := range docs {
				byCollection[d.Collection] = append(byCollection[d.Collection], d)
				bytes += d.Size()
			}
			p.Estimate(int64(len(docs)), bytes)

			w := export.NewWriter(dir)
			manifest := export.Manifest{Database: database, CreatedAt: snapshot.UTC()}
			for _, c := range collections {
				batch := byCollection[c]
				for i := range batch {
					if err := p.Advance(1, batch[i].Size()); err != nil {
						return nil, err
					}
				}
				file, err := w.WriteCollection(c, batch)
				if err != nil {
					return nil, apperrors.Newf(apperrors.ErrInternal, "exporting %s: %v", c, err)
				}
				manifest.Collections = append(manifest.Collections, file)
			}
			if err := p.Finalizing(); err != nil {
				return nil, err
			}
			if _, err := w.WriteManifest(manifest); err != nil {
				return nil, apperrors.Newf(apperrors.ErrInternal, "writing export manifest: %v", err)
			}
			return &proto.ExportDocumentsResponse{OutputURIPrefix: uri}, nil
		},
		Rollback: func(context.Context) {
			if !createdDir {
				return
			}
			if err := os.RemoveAll(dir); err != nil {
				s.logger.Error("removing partial export failed", "dir", dir, "error", err)
			}
		},
	})
}

// collections returns ids, or every collection group holding documents when
// ids is empty, in name order.
func (s *Service) collections(ctx context.Context, database string, ids []string) ([]string, error) {
	if len(ids) > 0 {
		out := slices.Clone(ids)
		sort.Strings(out)
		return slices.Compact(out), nil
	}
	counts, err := s.store.CollectionCounts(ctx, database)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(counts))
	for c := range counts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) ImportDocuments(ctx context.Context, req *proto.ImportDocumentsRequest) (*proto.Operation, error) {
	name, err := resource.ParseDatabaseName(req.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, name); err != nil {
		return nil, err
	}
	if err := errors.Join(checkNamespaces(req.NamespaceIDs), checkCollectionIDs(req.CollectionIDs)); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "%v", err)
	}
	dir, _, err := s.exportLocation(name, req.InputURIPrefix, false)
	if err != nil {
		return nil, err
	}
	database := name.String()
	return s.start(ctx, runner.Spec{
		Kind:     "ImportDocuments",
		Database: database,
		Metadata: &proto.ImportDocumentsMetadata{
			CollectionIDs:  req.CollectionIDs,
			InputURIPrefix: req.InputURIPrefix,
			NamespaceIDs:   req.NamespaceIDs,
		},
		Run: func(ctx context.Context, p *runner.Progress) (proto.Message, error) {
			manifest, err := export.ReadManifest(dir)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return nil, apperrors.Newf(apperrors.ErrNotFound, "no export found at %s", req.InputURIPrefix)
			case errors.Is(err, export.ErrCorrupt):
				return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "export at %s is unreadable: %v", req.InputURIPrefix, err)
			case err != nil:
				return nil, apperrors.Newf(apperrors.ErrInternal, "reading export: %v", err)
			}
			files := manifest.Collections[:0:0]
			var docs, bytes int64
			for _, f := range manifest.Collections {
				if len(req.CollectionIDs) == 0 || slices.Contains(req.CollectionIDs, f.Collection) {
					files = append(files, f)
					docs += int64(f.Documents)
					bytes += f.Bytes
				}
			}
			p.Estimate(docs, bytes)

			for _, f := range files {
				batch, err := readCollection(filepath.Join(dir, filepath.FromSlash(f.Path)))
				if err != nil {
					return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "export file for %s is unreadable: %v", f.Collection, err)
				}
				for i := range batch {
					if batch[i].Collection != f.Collection {
						return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "export file for %s holds documents of %s", f.Collection, batch[i].Collection)
					}
					if err := s.store.PutDocuments(ctx, database, batch[i:i+1]); err != nil {
						return nil, err
					}
					if err := p.Advance(1, batch[i].Size()); err != nil {
						return nil, err
					}
				}
			}
			return &proto.Empty{}, nil
		},
	})
}

func readCollection(path string) ([]store.Document, error) {
	r, err := export.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Documents()
}

func (s *Service) BulkDeleteDocuments(ctx context.Context, req *proto.BulkDeleteDocumentsRequest) (*proto.Operation, error) {
	name, err := resource.ParseDatabaseName(req.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, name); err != nil {
		return nil, err
	}
	if err := errors.Join(checkNamespaces(req.NamespaceIDs), checkCollectionIDs(req.CollectionIDs)); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "%v", err)
	}
	database := name.String()
	return s.start(ctx, runner.Spec{
		Kind:     "BulkDeleteDocuments",
		Database: database,
		Metadata: &proto.BulkDeleteDocumentsMetadata{
			CollectionIDs: req.CollectionIDs,
			NamespaceIDs:  req.NamespaceIDs,
			SnapshotTime:  proto.Timestamp(s.now()),
		},
		Run: func(ctx context.Context, p *runner.Progress) (proto.Message, error) {
			collections, err := s.collections(ctx, database, req.CollectionIDs)
			if err != nil {
				return nil, err
			}
			docs, err := s.store.ListDocuments(ctx, database, collections)
			if err != nil {
				return nil, err
			}
			var bytes int64
			for i := range docs {
				bytes += docs[i].Size()
			}
			p.Estimate(int64(len(docs)), bytes)
			for _, c := range collections {
				var size, n int64
				for i := range docs {
					if docs[i].Collection == c {
						size += docs[i].Size()
						n++
					}
				}
				if _, err := s.store.DeleteDocuments(ctx, database, []string{c}); err != nil {
					return nil, err
				}
				if err := p.Advance(n, size); err != nil {
					return nil, err
				}
			}
			return &proto.BulkDeleteDocumentsResponse{}, nil
		},
	})
}

// SeedDocuments stores documents in one collection group of a database. It
// backs the emulator-only seeding endpoint.
func (s *Service) SeedDocuments(ctx context.Context, database, collection string, docs map[string]json.RawMessage) (int, error) {
	name, err := resource.ParseDatabaseName(database)
	if err != nil {
		return 0, err
	}
	if _, err := s.database(ctx, name); err != nil {
		return 0, err
	}
	if err := resource.ValidateCollectionID(collection, false); err != nil {
		return 0, err
	}
	batch := make([]store.Document, 0, len(docs))
	now := s.now().UTC()
	for id, data := range docs {
		if id == "" || strings.Contains(id, "/") {
			return 0, apperrors.Newf(apperrors.ErrInvalidArgument, "invalid document ID %q", id)
		}
		if !json.Valid(data) {
			return 0, apperrors.Newf(apperrors.ErrInvalidArgument, "document %q is not valid JSON", id)
		}
		batch = append(batch, store.Document{Collection: collection, ID: id, Data: data, UpdateTime: now})
	}
	if err := s.store.PutDocuments(ctx, name.String(), batch); err != nil {
		return 0, err
	}
	s.logger.Info("documents seeded", "database", name.String(), "collection", collection, "count", len(batch))
	return len(batch), nil
}

// ClearDocuments deletes every document of a database without an operation.
func (s *Service) ClearDocuments(ctx context.Context, database string) (int64, error) {
	name, err := resource.ParseDatabaseName(database)
	if err != nil {
		return 0, err
	}
	if _, err := s.database(ctx, name); err != nil {
		return 0, err
	}
	return s.store.DeleteDocuments(ctx, name.String(), nil)
}

// DocumentCounts returns the number of documents per collection group.
func (s *Service) DocumentCounts(ctx context.Context, database string) (map[string]int, error) {
	name, err := resource.ParseDatabaseName(database)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, name); err != nil {
		return nil, err
	}
	return s.store.CollectionCounts(ctx, name.String())
}
