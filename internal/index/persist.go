package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// On-disk layout of a persisted index directory.
const (
	ManifestFile   = "manifest.json"
	ItemsFile      = "items.json.zst"
	VectorsFile    = "vectors.bin.zst"
	FormatVersion  = 1
	vectorIDBytes  = 8
	float32Bytes   = 4
	dirPermissions = 0o755
)

// Manifest describes a persisted index directory.
type Manifest struct {
	Version    int       `json:"version"`
	BuildID    string    `json:"build_id"`
	CreatedAt  time.Time `json:"created_at"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Metric     Metric    `json:"metric"`
	Count      int       `json:"count"`
	Files      struct {
		Items   FileInfo `json:"items"`
		Vectors FileInfo `json:"vectors"`
	} `json:"files"`
}

// FileInfo identifies one data file and its CRC32 (IEEE) over the bytes on disk.
type FileInfo struct {
	Name  string `json:"name"`
	CRC32 uint32 `json:"crc32"`
	Size  int64  `json:"size"`
}

type itemRecord struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Save writes idx to dir. The new directory is assembled next to dir and
// renamed into place, so a concurrent Load sees either the old or the new index.
func Save(idx *Index, dir string) error {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(filepath.Dir(dir), dirPermissions); err != nil {
		return fmt.Errorf("%w: create parent dir: %w", domain.ErrBuild, err)
	}

	tmp := dir + ".tmp-" + uuid.NewString()
	if err := os.Mkdir(tmp, dirPermissions); err != nil {
		return fmt.Errorf("%w: create temp dir: %w", domain.ErrBuild, err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	m := Manifest{
		Version:    FormatVersion,
		BuildID:    idx.meta.BuildID,
		CreatedAt:  idx.meta.CreatedAt.UTC(),
		Model:      idx.meta.Model,
		Dimensions: idx.dim,
		Metric:     idx.metric,
		Count:      idx.Len(),
	}
	if m.BuildID == "" {
		m.BuildID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	var err error
	if m.Files.Items, err = writeCompressed(tmp, ItemsFile, encodeItems(idx.items)); err != nil {
		return fmt.Errorf("%w: write items: %w", domain.ErrBuild, err)
	}
	if m.Files.Vectors, err = writeCompressed(tmp, VectorsFile, encodeVectors(idx)); err != nil {
		return fmt.Errorf("%w: write vectors: %w", domain.ErrBuild, err)
	}

	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal manifest: %w", domain.ErrBuild, err)
	}
	if err := os.WriteFile(filepath.Join(tmp, ManifestFile), manifest, 0o644); err != nil { //nolint:gosec // index files are not secret
		return fmt.Errorf("%w: write manifest: %w", domain.ErrBuild, err)
	}

	if err := swapDir(tmp, dir); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBuild, err)
	}
	return nil
}

// Load reads an index previously written by Save. Any missing file, checksum
// mismatch, or structural inconsistency is reported as domain.ErrLoad.
func Load(dir string) (*Index, error) {
	dir = filepath.Clean(dir)

	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %w", domain.ErrLoad, err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %w", domain.ErrLoad, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d (expected %d)", domain.ErrLoad, m.Version, FormatVersion)
	}
	if m.Dimensions <= 0 || m.Count <= 0 {
		return nil, fmt.Errorf("%w: manifest has %d items of %d dimensions", domain.ErrLoad, m.Count, m.Dimensions)
	}

	itemsData, err := readCompressed(dir, m.Files.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: items: %w", domain.ErrLoad, err)
	}
	var records []itemRecord
	if err := json.Unmarshal(itemsData, &records); err != nil {
		return nil, fmt.Errorf("%w: parse items: %w", domain.ErrLoad, err)
	}
	if len(records) != m.Count {
		return nil, fmt.Errorf("%w: manifest lists %d items, file has %d", domain.ErrLoad, m.Count, len(records))
	}

	vecData, err := readCompressed(dir, m.Files.Vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: vectors: %w", domain.ErrLoad, err)
	}
	ids, vectors, err := decodeVectors(vecData, m.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}
	if len(vectors) != m.Count {
		return nil, fmt.Errorf("%w: manifest lists %d vectors, file has %d", domain.ErrLoad, m.Count, len(vectors))
	}

	items := make([]domain.CatalogItem, len(records))
	for i, r := range records {
		if ids[i] != r.ID {
			return nil, fmt.Errorf("%w: record %d: vector id %d does not match item id %d", domain.ErrLoad, i, ids[i], r.ID)
		}
		items[i] = domain.CatalogItem{ID: r.ID, Description: r.Description}
	}

	idx, err := New(items, vectors, m.Metric, Meta{BuildID: m.BuildID, Model: m.Model, CreatedAt: m.CreatedAt})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}
	return idx, nil
}

func encodeItems(items []domain.CatalogItem) []byte {
	records := make([]itemRecord, len(items))
	for i, it := range items {
		records[i] = itemRecord{ID: it.ID, Description: it.Description}
	}
	data, _ := json.Marshal(records) //nolint:errchkjson // plain structs always marshal
	return data
}

// encodeVectors lays out records of little-endian int64 id followed by dim float32s.
func encodeVectors(idx *Index) []byte {
	recSize := vectorIDBytes + idx.dim*float32Bytes
	buf := make([]byte, len(idx.items)*recSize)
	for i, it := range idx.items {
		off := i * recSize
		binary.LittleEndian.PutUint64(buf[off:], uint64(int64(it.ID)))
		off += vectorIDBytes
		for _, f := range idx.vectors[i] {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += float32Bytes
		}
	}
	return buf
}

func decodeVectors(data []byte, dim int) ([]int, [][]float32, error) {
	recSize := vectorIDBytes + dim*float32Bytes
	if len(data)%recSize != 0 {
		return nil, nil, fmt.Errorf("vectors file length %d is not a multiple of record size %d", len(data), recSize)
	}
	n := len(data) / recSize
	ids := make([]int, n)
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		off := i * recSize
		ids[i] = int(int64(binary.LittleEndian.Uint64(data[off:])))
		off += vectorIDBytes
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += float32Bytes
		}
		vectors[i] = vec
	}
	return ids, vectors, nil
}

func writeCompressed(dir, name string, payload []byte) (FileInfo, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return FileInfo{}, fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	crc := crc32.NewIEEE()
	counter := &countingWriter{}
	enc, err := zstd.NewWriter(io.MultiWriter(f, crc, counter))
	if err != nil {
		return FileInfo{}, fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := enc.Write(payload); err != nil {
		_ = enc.Close()
		return FileInfo{}, fmt.Errorf("compress %s: %w", name, err)
	}
	if err := enc.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("flush %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		return FileInfo{}, fmt.Errorf("sync %s: %w", name, err)
	}
	return FileInfo{Name: name, CRC32: crc.Sum32(), Size: counter.n}, nil
}

func readCompressed(dir string, info FileInfo) ([]byte, error) {
	if info.Name == "" || filepath.Base(info.Name) != info.Name {
		return nil, fmt.Errorf("invalid file name %q", info.Name)
	}
	raw, err := os.ReadFile(filepath.Join(dir, info.Name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", info.Name, err)
	}
	if sum := crc32.ChecksumIEEE(raw); sum != info.CRC32 {
		return nil, fmt.Errorf("%s: checksum mismatch (got %08x, manifest %08x)", info.Name, sum, info.CRC32)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", info.Name, err)
	}
	return out, nil
}

// swapDir replaces dst with src. An existing dst is moved aside first and
// removed only after src is in place.
func swapDir(src, dst string) error {
	old := ""
	if _, err := os.Stat(dst); err == nil {
		old = dst + ".old-" + uuid.NewString()
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("move previous index aside: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", dst, err)
	}

	if err := os.Rename(src, dst); err != nil {
		if old != "" {
			_ = os.Rename(old, dst)
		}
		return fmt.Errorf("install index: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
