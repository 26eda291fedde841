// Package library appends converted files to the catalog and disposes of the
// scratch copies afterwards.
package library

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"libconv/internal/logging"
)

// Registrar adds a file as a new stored format of a document.
type Registrar interface {
	RegisterFormat(ctx context.Context, id, path string) error
}

// Mutator registers conversion outputs and always removes the scratch file.
type Mutator struct {
	registrar Registrar
	logger    *slog.Logger
	remove    func(string) error
}

// New constructs a mutator over registrar.
func New(registrar Registrar, logger *slog.Logger) (*Mutator, error) {
	if registrar == nil {
		return nil, errors.New("registrar required")
	}
	return &Mutator{
		registrar: registrar,
		logger:    logging.NewComponentLogger(logger, "library"),
		remove:    os.Remove,
	}, nil
}

// Register hands outputPath to the catalog for document id, then deletes the
// scratch file whatever the outcome. Only the registration error is returned;
// cleanup failures are logged.
func (m *Mutator) Register(ctx context.Context, id, outputPath string) error {
	err := m.registrar.RegisterFormat(ctx, id, outputPath)
	m.cleanup(id, outputPath)
	return err
}

func (m *Mutator) cleanup(id, path string) {
	if path == "" {
		return
	}
	err := m.remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}
	logging.WarnWithContext(m.logger, "failed to remove scratch output", "scratch_cleanup_failed",
		logging.String(logging.FieldDocumentID, id),
		logging.String("output", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "delete the file manually; the catalog already holds its own copy"),
		logging.String(logging.FieldImpact, "scratch file remains next to the source"),
	)
}
