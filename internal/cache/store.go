package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/internal/types"
)

// storeMagic and storeVersion identify the on-disk action cache format.
// A magic/version mismatch is treated as absent rather than fatal: Load
// reports it as an error, Open logs it and starts with an empty cache,
// and the cache simply rebuilds.
const (
	storeMagic   uint32 = 0x42444C52 // "BDLR"
	storeVersion uint32 = 1
)

// Store persists ActionRecords to a single framed binary file: a fixed
// header followed by one length-prefixed, JSON-encoded record per entry.
// Writes go through a temp file and os.Rename so a crash mid-write never
// corrupts the previous generation.
type Store struct {
	path string
}

// NewStore returns a Store rooted at path. path need not exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads every record from disk. A missing file is not an error: it
// means the cache has never been flushed. A corrupt or version-mismatched
// file is reported so the caller can log and continue with an empty
// cache.
func (s *Store) Load() ([]*types.ActionRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	r := bytes.NewReader(data)

	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("cache store: reading magic: %w", err)
	}
	if magic != storeMagic {
		return nil, fmt.Errorf("cache store: bad magic %#x, want %#x", magic, storeMagic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("cache store: reading version: %w", err)
	}
	if version != storeVersion {
		// Forward-incompatible version: treat as empty and rebuild.
		return nil, fmt.Errorf("cache store: unsupported version %d", version)
	}

	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("cache store: reading record count: %w", err)
	}

	records := make([]*types.ActionRecord, 0, count)
	for i := uint64(0); i < count; i++ {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("cache store: reading record %d length: %w", i, err)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("cache store: reading record %d body: %w", i, err)
		}

		var rec types.ActionRecord
		if err := json.Unmarshal(buf, &rec); err != nil {
			return nil, fmt.Errorf("cache store: decoding record %d: %w", i, err)
		}
		records = append(records, &rec)
	}

	return records, nil
}

// Save writes every record to disk in a single framed file, replacing any
// prior generation atomically.
func (s *Store) Save(records []*types.ActionRecord) error {
	var buf bytes.Buffer

	binary.Write(&buf, binary.LittleEndian, storeMagic)
	binary.Write(&buf, binary.LittleEndian, storeVersion)
	binary.Write(&buf, binary.LittleEndian, uint64(len(records)))

	for _, rec := range records {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("cache store: encoding record %s: %w", rec.ActionID.String(), err)
		}
		binary.Write(&buf, binary.LittleEndian, uint32(len(body)))
		buf.Write(body)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache store: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("cache store: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cache store: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache store: closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache store: renaming into place: %w", err)
	}
	return nil
}
