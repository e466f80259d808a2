package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/lexflow/pkg/persistence"
)

// jsonDir keeps one JSON file per record in a single directory.
type jsonDir[T any] struct {
	mu       sync.RWMutex
	path     string
	notFound error
}

func newJSONDir[T any](root, name string, notFound error) *jsonDir[T] {
	return &jsonDir[T]{path: filepath.Join(root, name), notFound: notFound}
}

// validateID rejects identifiers that would escape the directory.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", persistence.ErrInvalidID)
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("%w: contains invalid characters", persistence.ErrInvalidID)
	}

	return nil
}

func (d *jsonDir[T]) file(id string) string {
	return filepath.Join(d.path, id+".json")
}

func (d *jsonDir[T]) save(id string, record *T) error {
	if err := validateID(id); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.path, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", d.path, err)
	}

	// Write through a temp file so readers never see a partial document.
	tmp := d.file(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := os.Rename(tmp, d.file(id)); err != nil {
		return fmt.Errorf("failed to replace record: %w", err)
	}

	return nil
}

func (d *jsonDir[T]) load(id string) (*T, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.read(d.file(id))
}

func (d *jsonDir[T]) read(path string) (*T, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- ids are validated before joining
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, d.notFound
		}

		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &record, nil
}

func (d *jsonDir[T]) remove(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := os.Remove(d.file(id))
	if errors.Is(err, fs.ErrNotExist) {
		return d.notFound
	}

	if err != nil {
		return fmt.Errorf("failed to remove record: %w", err)
	}

	return nil
}

func (d *jsonDir[T]) idle(before time.Time, updatedAt func(*T) time.Time) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(d.path, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	var ids []string

	for _, path := range matches {
		record, err := d.read(path)
		if err != nil {
			// Removed between the listing and the read.
			if errors.Is(err, d.notFound) {
				continue
			}

			return ids, err
		}

		if updatedAt(record).Before(before) {
			ids = append(ids, strings.TrimSuffix(filepath.Base(path), ".json"))
		}
	}

	return ids, nil
}
