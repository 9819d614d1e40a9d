package artifact

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"archmap/pkg/errors"
)

// Run is one persisted diagram run. Raw JSON fields hold the artifact
// documents produced by the marshal functions in this package.
type Run struct {
	ID          string          `json:"id" bson:"_id"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
	RequestHash string          `json:"request_hash" bson:"request_hash"`
	Diagram     string          `json:"diagram" bson:"diagram"`
	Routes      json.RawMessage `json:"routes,omitempty" bson:"routes,omitempty"`
	Callgraph   json.RawMessage `json:"callgraph,omitempty" bson:"callgraph,omitempty"`
}

// Store persists diagram runs. Implementations must be safe for
// concurrent use; the HTTP service shares one store across requests.
type Store interface {
	// Save persists a run. An existing run with the same ID is
	// overwritten.
	Save(ctx context.Context, run *Run) error

	// Get retrieves a run by ID. Returns ErrCodeNotFound when absent.
	Get(ctx context.Context, id string) (*Run, error)

	// Close releases backend resources.
	Close() error
}

// FileStore persists runs as JSON files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store, creating the directory if
// needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the run as an indented JSON file named after its ID.
func (s *FileStore) Save(ctx context.Context, run *Run) error {
	data, err := marshalIndented(run)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(run.ID), data, 0644)
}

// Get reads a run back by ID.
func (s *FileStore) Get(ctx context.Context, id string) (*Run, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "run %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode run %s", id)
	}
	return &run, nil
}

// Close does nothing for the file store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// NullStore discards every run. Used when persistence is not
// configured.
type NullStore struct{}

// NewNullStore creates a store that keeps nothing.
func NewNullStore() *NullStore {
	return &NullStore{}
}

// Save discards the run.
func (s *NullStore) Save(ctx context.Context, run *Run) error {
	return nil
}

// Get always reports not found.
func (s *NullStore) Get(ctx context.Context, id string) (*Run, error) {
	return nil, errors.New(errors.ErrCodeNotFound, "run %s not found", id)
}

// Close does nothing.
func (s *NullStore) Close() error {
	return nil
}

// Interface compliance checks.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*NullStore)(nil)
)
