// Package artifacts persists the generated backend source and endpoint schema.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"agentforge/internal/logging"

	"go.uber.org/zap"
)

// Mirror receives a copy of every persisted artifact
type Mirror interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Store reads the code template and overwrites the source and schema files.
// Nothing is versioned; each write replaces the previous artifact.
type Store struct {
	TemplatePath string
	SourcePath   string
	SchemaPath   string

	mirror Mirror
}

// NewStore creates a store over the given paths. mirror may be nil.
func NewStore(templatePath, sourcePath, schemaPath string, mirror Mirror) *Store {
	return &Store{
		TemplatePath: templatePath,
		SourcePath:   sourcePath,
		SchemaPath:   schemaPath,
		mirror:       mirror,
	}
}

// LoadTemplate returns the code template
func (s *Store) LoadTemplate() (string, error) {
	data, err := os.ReadFile(s.TemplatePath)
	if err != nil {
		return "", fmt.Errorf("read code template: %w", err)
	}
	return string(data), nil
}

// ReadSource returns the last persisted backend source
func (s *Store) ReadSource() (string, error) {
	data, err := os.ReadFile(s.SourcePath)
	if err != nil {
		return "", fmt.Errorf("read backend source: %w", err)
	}
	return string(data), nil
}

// WriteSource overwrites the backend source
func (s *Store) WriteSource(ctx context.Context, code string) error {
	return s.write(ctx, s.SourcePath, code)
}

// WriteSchema overwrites the endpoint schema
func (s *Store) WriteSchema(ctx context.Context, schema string) error {
	return s.write(ctx, s.SchemaPath, schema)
}

func (s *Store) write(ctx context.Context, path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if s.mirror != nil {
		key := filepath.Base(path)
		if err := s.mirror.Put(ctx, key, []byte(content)); err != nil {
			// The local file is authoritative.
			logging.L().Warn("artifact mirror upload failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}
