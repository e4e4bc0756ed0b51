package partition

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/blockpack/blobstore"
)

const (
	// CurrentFileName is the pointer blob naming the live manifest.
	CurrentFileName = "CURRENT"

	// CurrentVersion is the manifest document version.
	CurrentVersion = 1
)

// BlockInfo describes one encoded partition block artifact.
type BlockInfo struct {
	Partition  string `json:"partition"`
	Object     string `json:"object"` // blob name, relative to the store root
	Vectors    int    `json:"vectors"`
	VectorSize int    `json:"vector_size"`
	Bytes      int64  `json:"bytes"`
	Checksum   uint32 `json:"checksum"` // CRC32 (IEEE) over the encoded artifact
}

// Manifest describes the complete set of blocks produced by one write run.
type Manifest struct {
	Version     int         `json:"version"`
	ID          uint64      `json:"id"`
	Compression string      `json:"compression"`
	KeyWidth    int         `json:"key_width"`
	ValueWidth  int         `json:"value_width"`
	Blocks      []BlockInfo `json:"blocks"`
}

// Block returns the block info for a partition.
func (m *Manifest) Block(partition string) (BlockInfo, bool) {
	for _, b := range m.Blocks {
		if b.Partition == partition {
			return b, true
		}
	}
	return BlockInfo{}, false
}

// Partitions returns the partition names in manifest order.
func (m *Manifest) Partitions() []string {
	names := make([]string, len(m.Blocks))
	for i, b := range m.Blocks {
		names[i] = b.Partition
	}
	return names
}

func manifestName(id uint64) string {
	return fmt.Sprintf("MANIFEST-%06d", id)
}

// ManifestStore persists manifests through a BlobStore. The live manifest
// is named by the CURRENT pointer blob; when the store provides
// conditional writes (s3.CommitStore), updating the pointer is an atomic
// compare-and-swap.
type ManifestStore struct {
	store blobstore.BlobStore
}

// NewManifestStore creates a manifest store on top of a blob store.
func NewManifestStore(store blobstore.BlobStore) *ManifestStore {
	return &ManifestStore{store: store}
}

// Load resolves the CURRENT pointer and decodes the manifest it names.
// It returns blobstore.ErrNotFound when no manifest has been committed.
func (s *ManifestStore) Load(ctx context.Context) (*Manifest, error) {
	cur, err := s.store.Open(ctx, CurrentFileName)
	if err != nil {
		return nil, err
	}
	name, err := blobstore.ReadAll(ctx, cur)
	_ = cur.Close()
	if err != nil {
		return nil, fmt.Errorf("read CURRENT: %w", err)
	}

	blob, err := s.store.Open(ctx, string(name))
	if err != nil {
		return nil, err
	}
	data, err := blobstore.ReadAll(ctx, blob)
	_ = blob.Close()
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", name, err)
	}
	if m.Version > CurrentVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return &m, nil
}

// Commit writes the manifest document and advances the CURRENT pointer to
// it. The pointer update happens last so readers never observe a pointer
// to a missing manifest.
func (s *ManifestStore) Commit(ctx context.Context, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	name := manifestName(m.ID)
	if err := s.store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("write manifest %s: %w", name, err)
	}
	if err := s.store.Put(ctx, CurrentFileName, []byte(name)); err != nil {
		return fmt.Errorf("commit CURRENT: %w", err)
	}
	return nil
}
