package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/stepwise/blobstore"
	"github.com/hupe1980/stepwise/codec"
)

// ManifestName is the blob name of a job manifest below the job prefix.
const ManifestName = "manifest.json"

// Manifest lists the archives a job published.
type Manifest struct {
	Job       string          `json:"job"`
	Codec     string          `json:"codec"`
	CreatedAt time.Time       `json:"created_at"`
	Entries   []ManifestEntry `json:"entries"`
}

// ManifestEntry describes one archive.
type ManifestEntry struct {
	Path        string `json:"path"`
	Round       int    `json:"round"`
	Step        string `json:"step"`
	Node        int    `json:"node"`
	Name        string `json:"name,omitempty"`
	Tag         string `json:"tag"`
	Compression string `json:"compression"`
	Bytes       int    `json:"bytes"`
	RawBytes    uint64 `json:"raw_bytes"`
}

// Manifest builds the manifest of job from the published records.
func (e *Exchange) Manifest(job string) Manifest {
	records := e.Records(job)
	m := Manifest{
		Job:       job,
		Codec:     codec.Default.Name(),
		CreatedAt: time.Now().UTC(),
		Entries:   make([]ManifestEntry, 0, len(records)),
	}
	for _, r := range records {
		m.Entries = append(m.Entries, ManifestEntry{
			Path:        r.Key.Path(),
			Round:       r.Key.Round,
			Step:        r.Key.Step.String(),
			Node:        r.Key.Node,
			Name:        r.Key.Name,
			Tag:         r.Tag.String(),
			Compression: r.Compression.String(),
			Bytes:       r.Bytes,
			RawBytes:    r.RawBytes,
		})
	}
	return m
}

// WriteManifest writes the manifest of job to "<job>/manifest.json".
func (e *Exchange) WriteManifest(ctx context.Context, job string) (Manifest, error) {
	m := e.Manifest(job)
	data, err := codec.Default.Marshal(m)
	if err != nil {
		return Manifest{}, fmt.Errorf("encode manifest: %w", err)
	}
	if err := e.store.Put(ctx, job+"/"+ManifestName, data); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

// ReadManifest reads the manifest of job, decoding it with the codec
// named inside.
func ReadManifest(ctx context.Context, store blobstore.BlobStore, job string) (Manifest, error) {
	data, err := blobstore.ReadAll(ctx, store, job+"/"+ManifestName)
	if err != nil {
		return Manifest{}, err
	}
	var head struct {
		Codec string `json:"codec"`
	}
	if err := codec.Default.Unmarshal(data, &head); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	c, ok := codec.ByName(head.Codec)
	if !ok {
		return Manifest{}, fmt.Errorf("decode manifest: unknown codec %q", head.Codec)
	}
	var m Manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
