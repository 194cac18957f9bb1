package export

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
)

// ReadManifest loads the manifest of the export in dir. A missing manifest
// yields an error matching fs.ErrNotExist; an unreadable one matches
// ErrCorrupt.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("export manifest in %s: %w", dir, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %v", ErrCorrupt, err)
	}
	for _, c := range m.Collections {
		if c.Path == "" || filepath.IsAbs(c.Path) || strings.Contains(c.Path, "..") {
			return nil, fmt.Errorf("%w: manifest entry %q has an invalid path", ErrCorrupt, c.Collection)
		}
	}
	return &m, nil
}

// Reader reads one collection file.
type Reader struct {
	file     *os.File
	filePath string
	header   FileHeader
	index    []IndexEntry
}

// OpenReader opens and verifies a collection file.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export file: %w", err)
	}
	r, err := verify(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.filePath = path
	return r, nil
}

func verify(f *os.File) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorrupt, err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, magic)
	}
	header := FileHeader{
		Magic:       magic,
		Version:     binary.LittleEndian.Uint32(headerBytes[4:8]),
		DocCount:    binary.LittleEndian.Uint32(headerBytes[8:12]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(headerBytes[12:20])),
		DocsOffset:  int64(binary.LittleEndian.Uint64(headerBytes[20:28])),
		DocsSize:    int64(binary.LittleEndian.Uint64(headerBytes[28:36])),
		IndexOffset: int64(binary.LittleEndian.Uint64(headerBytes[36:44])),
		IndexSize:   int64(binary.LittleEndian.Uint64(headerBytes[44:52])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat export file: %w", err)
	}
	if header.DocsOffset != int64(HeaderSize) ||
		header.IndexOffset != header.DocsOffset+header.DocsSize ||
		header.IndexOffset+header.IndexSize+int64(FooterSize) != info.Size() {
		return nil, fmt.Errorf("%w: section sizes do not match file size", ErrCorrupt)
	}

	body := make([]byte, header.DocsSize+header.IndexSize)
	if _, err := f.ReadAt(body, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrCorrupt, err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.IndexOffset+header.IndexSize); err != nil {
		return nil, fmt.Errorf("%w: reading footer: %v", ErrCorrupt, err)
	}
	if sum := crc32.ChecksumIEEE(body); sum != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var index []IndexEntry
	if err := json.Unmarshal(body[header.DocsSize:], &index); err != nil {
		return nil, fmt.Errorf("%w: parsing index: %v", ErrCorrupt, err)
	}
	if len(index) != int(header.DocCount) {
		return nil, fmt.Errorf("%w: index lists %d documents, header %d", ErrCorrupt, len(index), header.DocCount)
	}
	return &Reader{file: f, header: header, index: index}, nil
}

// Documents decodes every document in file order.
func (r *Reader) Documents() ([]store.Document, error) {
	docs := make([]store.Document, 0, len(r.index))
	for _, e := range r.index {
		d, err := r.read(e)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Lookup returns the document with the given ID.
func (r *Reader) Lookup(id string) (store.Document, bool, error) {
	i := sort.Search(len(r.index), func(i int) bool { return r.index[i].ID >= id })
	if i >= len(r.index) || r.index[i].ID != id {
		return store.Document{}, false, nil
	}
	d, err := r.read(r.index[i])
	return d, err == nil, err
}

func (r *Reader) read(e IndexEntry) (store.Document, error) {
	buf := make([]byte, e.Len)
	if _, err := r.file.ReadAt(buf, r.header.DocsOffset+e.Offset); err != nil {
		return store.Document{}, fmt.Errorf("reading document %q: %w", e.ID, err)
	}
	var d store.Document
	if err := json.Unmarshal(buf, &d); err != nil {
		return store.Document{}, fmt.Errorf("%w: parsing document %q: %v", ErrCorrupt, e.ID, err)
	}
	return d, nil
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Close() error {
	return r.file.Close()
}
