package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"libconv/internal/formats"
	"libconv/internal/services"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// MetadataDB is a read-only view of a Calibre library's metadata.db.
type MetadataDB struct {
	db          *sql.DB
	path        string
	libraryPath string
}

// OpenMetadataDB opens dbPath read-only. Stored file paths are resolved
// relative to libraryPath.
func OpenMetadataDB(ctx context.Context, dbPath, libraryPath string) (*MetadataDB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("metadata.db path required")
	}
	dsn := url.URL{Scheme: "file", Path: dbPath, RawQuery: "mode=ro&_pragma=busy_timeout(5000)"}
	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, services.Wrap(services.ErrCatalogUnavailable, "opening", "metadata.db", dbPath, err)
	}
	// Calibre serializes writers; one read connection is plenty.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrCatalogUnavailable, "opening", "metadata.db", dbPath, err)
	}
	return &MetadataDB{db: db, path: dbPath, libraryPath: libraryPath}, nil
}

// Path returns the database file location.
func (m *MetadataDB) Path() string {
	return m.path
}

// Close releases the database handle.
func (m *MetadataDB) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// ListDocuments reads every book and its stored formats.
func (m *MetadataDB) ListDocuments(ctx context.Context) (Listing, error) {
	const query = `
SELECT b.id, COALESCE(b.title, ''), COALESCE(b.path, ''), d.format, d.name
FROM books b
LEFT JOIN data d ON d.book = b.id
ORDER BY b.id, d.id`

	var listing Listing
	err := retryOnBusy(ctx, func() error {
		listing = Listing{}
		rows, err := m.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		var (
			current  *Document
			rejected map[string]bool
		)
		rejected = map[string]bool{}
		flush := func() {
			if current != nil && !rejected[current.ID] {
				listing.Documents = append(listing.Documents, *current)
			}
			current = nil
		}
		for rows.Next() {
			var (
				id          int64
				title, dir  string
				format, name sql.NullString
			)
			if err := rows.Scan(&id, &title, &dir, &format, &name); err != nil {
				return err
			}
			key := strconv.FormatInt(id, 10)
			if current == nil || current.ID != key {
				flush()
				current = &Document{ID: key, Title: title, Formats: formats.NewSet(), Paths: map[formats.Format]string{}}
			}
			if !format.Valid {
				continue
			}
			tag, err := formats.Parse(format.String)
			if err != nil {
				if !rejected[key] {
					rejected[key] = true
					listing.Rejected = append(listing.Rejected, RejectedRecord{
						Index:  len(listing.Documents) + len(listing.Rejected),
						Reason: fmt.Sprintf("document %s: %v", key, err),
					})
				}
				continue
			}
			current.Formats.Add(tag)
			if _, seen := current.Paths[tag]; !seen {
				current.Paths[tag] = m.filePath(dir, name.String, tag)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		flush()
		return nil
	})
	if err != nil {
		return Listing{}, services.Wrap(services.ErrCatalogUnavailable, "listing", "metadata.db", "", err)
	}
	return listing, nil
}

// StoredPath returns the file Calibre records for id in format.
func (m *MetadataDB) StoredPath(ctx context.Context, id string, format formats.Format) (string, error) {
	bookID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return "", fmt.Errorf("metadata.db ids are integers: %q", id)
	}
	const query = `
SELECT COALESCE(b.path, ''), COALESCE(d.name, '')
FROM books b
JOIN data d ON d.book = b.id
WHERE b.id = ? AND lower(d.format) = ?
LIMIT 1`

	var dir, name string
	err = retryOnBusy(ctx, func() error {
		return m.db.QueryRowContext(ctx, query, bookID, string(format)).Scan(&dir, &name)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document %s has no stored %s", id, format)
	}
	if err != nil {
		return "", fmt.Errorf("query stored path: %w", err)
	}
	return m.filePath(dir, name, format), nil
}

func (m *MetadataDB) filePath(dir, name string, format formats.Format) string {
	return filepath.Join(m.libraryPath, filepath.FromSlash(dir), name+format.Extension())
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy repeats op while Calibre holds the write lock.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
