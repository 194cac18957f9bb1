// Package export reads and writes document exports.
//
// An export is a directory holding one file per collection group under
// all_namespaces/kind_<collection>/ and a manifest named
// <dir>.overall_export_metadata listing them. Each collection file has a
// fixed 64-byte header, the documents as consecutive JSON objects, a JSON
// index of document offsets and a 32-byte footer carrying a CRC-32 of the
// document and index sections. Files are written to a .tmp name and renamed
// once complete.
package export

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
)

const (
	MagicBytes     uint32 = 0x44414558 // "DAEX"
	FormatVersion  uint32 = 1
	HeaderSize     int    = 64
	FooterSize     int    = 32
	ManifestSuffix        = ".overall_export_metadata"
	namespacesDir         = "all_namespaces"
	dataFileName          = "output-0.export"
)

// ErrCorrupt reports an export file or manifest that fails validation.
var ErrCorrupt = errors.New("corrupt export")

// FileHeader is the 64-byte header at the start of every collection file.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	DocCount    uint32
	CreatedAt   int64
	DocsOffset  int64
	DocsSize    int64
	IndexOffset int64
	IndexSize   int64
}

// IndexEntry locates one document in a collection file.
type IndexEntry struct {
	ID     string `json:"i"`
	Offset int64  `json:"o"`
	Len    int    `json:"l"`
}

// Manifest lists the collection files of one export.
type Manifest struct {
	Database    string           `json:"database"`
	CreatedAt   time.Time        `json:"createdAt"`
	Collections []CollectionFile `json:"collections"`
}

// CollectionFile describes the file of one collection group.
type CollectionFile struct {
	Collection string `json:"collection"`
	// Path is relative to the export directory.
	Path      string `json:"path"`
	Documents int    `json:"documents"`
	Bytes     int64  `json:"bytes"`
	Checksum  uint32 `json:"crc32"`
}

// ManifestPath returns the manifest location of the export in dir.
func ManifestPath(dir string) string {
	return filepath.Join(dir, filepath.Base(filepath.Clean(dir))+ManifestSuffix)
}

// Writer writes one export directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the export directory.
func (w *Writer) Dir() string { return w.dir }

// WriteCollection writes the documents of one collection group in ID order.
// Documents from other collections are rejected.
func (w *Writer) WriteCollection(collection string, docs []store.Document) (CollectionFile, error) {
	docs = slices.Clone(docs)
	slices.SortFunc(docs, func(a, b store.Document) int { return strings.Compare(a.ID, b.ID) })

	rel := filepath.Join(namespacesDir, "kind_"+collection, dataFileName)
	finalPath := filepath.Join(w.dir, rel)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return CollectionFile{}, fmt.Errorf("creating export directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return CollectionFile{}, fmt.Errorf("creating temp export file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.Write(headerBytes); err != nil {
		return CollectionFile{}, fmt.Errorf("writing header: %w", err)
	}

	crc := crc32.NewIEEE()
	docsStart := int64(HeaderSize)
	offset := int64(0)
	index := make([]IndexEntry, 0, len(docs))
	for _, d := range docs {
		if d.Collection != collection {
			return CollectionFile{}, fmt.Errorf("document %s/%s in export of %s", d.Collection, d.ID, collection)
		}
		data, err := json.Marshal(d)
		if err != nil {
			return CollectionFile{}, fmt.Errorf("marshaling document %q: %w", d.ID, err)
		}
		if _, err := f.Write(data); err != nil {
			return CollectionFile{}, fmt.Errorf("writing document %q: %w", d.ID, err)
		}
		crc.Write(data)
		index = append(index, IndexEntry{ID: d.ID, Offset: offset, Len: len(data)})
		offset += int64(len(data))
	}
	docsSize := offset

	indexData, err := json.Marshal(index)
	if err != nil {
		return CollectionFile{}, fmt.Errorf("marshaling index: %w", err)
	}
	if _, err := f.Write(indexData); err != nil {
		return CollectionFile{}, fmt.Errorf("writing index: %w", err)
	}
	crc.Write(indexData)
	checksum := crc.Sum32()

	indexStart := docsStart + docsSize
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(docs)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(indexStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(indexData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(docsSize))
	if _, err := f.Write(footer); err != nil {
		return CollectionFile{}, fmt.Errorf("writing footer: %w", err)
	}

	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(docs)))
	binary.LittleEndian.PutUint64(headerBytes[12:20], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(headerBytes[20:28], uint64(docsStart))
	binary.LittleEndian.PutUint64(headerBytes[28:36], uint64(docsSize))
	binary.LittleEndian.PutUint64(headerBytes[36:44], uint64(indexStart))
	binary.LittleEndian.PutUint64(headerBytes[44:52], uint64(len(indexData)))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return CollectionFile{}, fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return CollectionFile{}, fmt.Errorf("syncing export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return CollectionFile{}, fmt.Errorf("closing export file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return CollectionFile{}, fmt.Errorf("renaming export file: %w", err)
	}

	return CollectionFile{
		Collection: collection,
		Path:       filepath.ToSlash(rel),
		Documents:  len(docs),
		Bytes:      int64(HeaderSize) + docsSize + int64(len(indexData)) + int64(FooterSize),
		Checksum:   checksum,
	}, nil
}

// WriteManifest writes the manifest last, so an export without one is
// incomplete.
func (w *Writer) WriteManifest(m Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	finalPath := ManifestPath(w.dir)
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming manifest: %w", err)
	}
	return finalPath, nil
}
