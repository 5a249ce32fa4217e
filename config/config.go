// Package config loads YAML job files for the stepwise command.
//
// A job names the algorithm, its parameters, the CSV partitions that play
// the local nodes and the blob store the partial results travel through:
//
//	name: blobs
//	algorithm: kmeansinit
//	method: parallelPlusDense
//	parameters:
//	  n_clusters: 4
//	  n_rounds: 3
//	partitions:
//	  - data/part-0.csv
//	  - data/part-1.csv
//	store:
//	  backend: local
//	  path: /tmp/stepwise
//	compression: zstd
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	yaml "gopkg.in/yaml.v3"

	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/resource"
)

var (
	// ErrJobNotFound is returned when the job file does not exist.
	ErrJobNotFound = errors.New("job file is not found")
	// ErrJobInvalid is returned when a job fails validation.
	ErrJobInvalid = errors.New("job is invalid")
)

// Algorithms lists the algorithm names a job may use.
var Algorithms = []string{"kmeansinit", "pca", "naivebayes", "ridge", "adaboost", "dtree", "quantiles"}

// Backends lists the supported blob store backends.
var Backends = []string{"memory", "local", "s3", "minio"}

// Job is one job file.
type Job struct {
	Name      string `yaml:"name"`
	Algorithm string `yaml:"algorithm"`
	// Method is the algorithm method name; empty selects the default.
	Method     string     `yaml:"method,omitempty"`
	Parameters Parameters `yaml:"parameters"`
	// Partitions are CSV files, one per local node.
	Partitions []string `yaml:"partitions"`
	// TargetColumns is the number of trailing CSV columns holding labels or
	// dependent variables.
	TargetColumns int `yaml:"target_columns,omitempty"`
	// Header skips the first line of every CSV file.
	Header      bool            `yaml:"header,omitempty"`
	Store       Store           `yaml:"store"`
	Compression string          `yaml:"compression,omitempty"`
	Resources   resource.Config `yaml:"resources,omitempty"`
	// Output is the path of the JSON result; empty prints to stdout.
	Output string `yaml:"output,omitempty"`
}

// Parameters is the union of the algorithm parameters. Each algorithm
// reads the fields it knows.
type Parameters struct {
	NClusters          int     `yaml:"n_clusters,omitempty"`
	OversamplingFactor float64 `yaml:"oversampling_factor,omitempty"`
	NRounds            int     `yaml:"n_rounds,omitempty"`
	Seed               uint64  `yaml:"seed,omitempty"`

	NComponents   int  `yaml:"n_components,omitempty"`
	Deterministic bool `yaml:"deterministic,omitempty"`

	NClasses int `yaml:"n_classes,omitempty"`

	RidgePenalty []float64 `yaml:"ridge_penalty,omitempty"`
	Intercept    *bool     `yaml:"intercept,omitempty"`

	MaxIterations     int     `yaml:"max_iterations,omitempty"`
	AccuracyThreshold float64 `yaml:"accuracy_threshold,omitempty"`

	Pruning               string `yaml:"pruning,omitempty"`
	MaxTreeDepth          int    `yaml:"max_tree_depth,omitempty"`
	MinObservationsInLeaf int    `yaml:"min_observations_in_leaf,omitempty"`
	// PruningPartition is the CSV file of the pruning set.
	PruningPartition string `yaml:"pruning_partition,omitempty"`

	QuantileOrders []float64 `yaml:"quantile_orders,omitempty"`
}

// Store selects and configures the blob store.
type Store struct {
	Backend string `yaml:"backend"`
	// Path is the root directory of the local backend.
	Path   string `yaml:"path,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
	// Endpoint is an S3-compatible endpoint (s3) or the server address
	// (minio).
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
	// CommitTable is the DynamoDB table of the commit log. Empty keeps the
	// commit log in memory.
	CommitTable string `yaml:"commit_table,omitempty"`
	// CacheBytes keeps up to this many bytes of read blobs in memory.
	CacheBytes int64 `yaml:"cache_bytes,omitempty"`
	// PartSize is the multipart part size of the s3 backend; zero keeps
	// the default. S3 requires at least 5 MiB.
	PartSize int64 `yaml:"part_size,omitempty"`
}

// minPartSize is the smallest multipart part S3 accepts.
const minPartSize = 5 << 20

// Load reads and validates the job file at path.
func Load(path string) (*Job, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrJobNotFound, path)
		}
		return nil, err
	}
	return Parse(buf)
}

// Parse decodes a job from YAML, applies defaults and validates it.
func Parse(buf []byte) (*Job, error) {
	job := &Job{}
	if err := yaml.Unmarshal(buf, job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJobInvalid, err)
	}
	job.applyDefaults()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Marshal encodes the job as YAML.
func (j *Job) Marshal() ([]byte, error) {
	return yaml.Marshal(j)
}

func (j *Job) applyDefaults() {
	if j.Name == "" {
		j.Name = j.Algorithm
	}
	if j.Store.Backend == "" {
		j.Store.Backend = "memory"
	}
	if j.Compression == "" {
		j.Compression = archive.CompressionZstd.String()
	}
	if j.TargetColumns == 0 {
		switch j.Algorithm {
		case "naivebayes", "ridge", "adaboost", "dtree":
			j.TargetColumns = 1
		}
	}
}

// Validate reports the first problem found in the job.
func (j *Job) Validate() error {
	if !slices.Contains(Algorithms, j.Algorithm) {
		return fmt.Errorf("%w: unknown algorithm %q", ErrJobInvalid, j.Algorithm)
	}
	if err := (exchange.Key{Job: j.Name}).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrJobInvalid, err)
	}
	if len(j.Partitions) == 0 {
		return fmt.Errorf("%w: no partitions", ErrJobInvalid)
	}
	if j.TargetColumns < 0 {
		return fmt.Errorf("%w: negative target_columns", ErrJobInvalid)
	}
	switch j.Algorithm {
	case "kmeansinit":
		if j.Parameters.NClusters <= 0 {
			return fmt.Errorf("%w: kmeansinit needs n_clusters", ErrJobInvalid)
		}
	case "naivebayes":
		if j.Parameters.NClasses <= 0 {
			return fmt.Errorf("%w: naivebayes needs n_classes", ErrJobInvalid)
		}
	case "dtree":
		if (j.Parameters.PruningPartition != "") != (j.Parameters.Pruning == "reducedErrorPruning") {
			return fmt.Errorf("%w: pruning_partition requires pruning: reducedErrorPruning and vice versa", ErrJobInvalid)
		}
	}
	if _, err := archive.ParseCompression(j.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrJobInvalid, err)
	}
	return j.Store.validate()
}

func (s Store) validate() error {
	if s.CacheBytes < 0 {
		return fmt.Errorf("%w: negative cache_bytes", ErrJobInvalid)
	}
	if s.PartSize != 0 && s.PartSize < minPartSize {
		return fmt.Errorf("%w: part_size must be at least %d", ErrJobInvalid, minPartSize)
	}
	switch s.Backend {
	case "memory":
	case "local":
		if s.Path == "" {
			return fmt.Errorf("%w: local store needs path", ErrJobInvalid)
		}
	case "s3":
		if s.Bucket == "" {
			return fmt.Errorf("%w: s3 store needs bucket", ErrJobInvalid)
		}
	case "minio":
		if s.Bucket == "" || s.Endpoint == "" {
			return fmt.Errorf("%w: minio store needs bucket and endpoint", ErrJobInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrJobInvalid, s.Backend)
	}
	return nil
}
