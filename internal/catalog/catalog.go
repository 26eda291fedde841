package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"libconv/internal/formats"
	"libconv/internal/logging"
	"libconv/internal/procexec"
	"libconv/internal/services"
)

// Document is a cataloged item and the formats currently stored for it.
type Document struct {
	ID      string
	Title   string
	Formats formats.Set
	// Paths holds the stored file per format as reported by the listing.
	Paths map[formats.Format]string
}

// RejectedRecord describes a listing entry that could not be decoded.
type RejectedRecord struct {
	Index  int
	Reason string
}

// Listing is one snapshot of the catalog.
type Listing struct {
	Documents []Document
	Rejected  []RejectedRecord
}

// ResolutionMethod tags how a source path was found.
type ResolutionMethod int

const (
	NotFound ResolutionMethod = iota
	ResolvedViaCatalog
	ResolvedViaSearch
)

func (m ResolutionMethod) String() string {
	switch m {
	case ResolvedViaCatalog:
		return "catalog"
	case ResolvedViaSearch:
		return "search"
	default:
		return "not_found"
	}
}

// Resolution is the outcome of ResolveSourcePath.
type Resolution struct {
	Path   string
	Method ResolutionMethod
}

// Option configures the client.
type Option func(*Client)

// WithRunner injects a custom process runner (primarily for tests).
func WithRunner(runner procexec.Runner) Option {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// WithMetadataDB reads listings and stored paths from metadata.db instead of calibredb.
func WithMetadataDB(db *MetadataDB) Option {
	return func(c *Client) {
		c.metadb = db
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps calibredb interactions for one library.
type Client struct {
	libraryPath string
	binary      string
	timeout     time.Duration
	runner      procexec.Runner
	metadb      *MetadataDB
	logger      *slog.Logger
}

// New constructs a catalog client for the library at libraryPath.
func New(libraryPath, binary string, timeout time.Duration, opts ...Option) (*Client, error) {
	libraryPath = strings.TrimSpace(libraryPath)
	if libraryPath == "" {
		return nil, errors.New("library path required")
	}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("calibredb binary required")
	}
	client := &Client{
		libraryPath: libraryPath,
		binary:      binary,
		timeout:     timeout,
		runner:      procexec.CommandRunner{},
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "catalog")
	return client, nil
}

// LibraryPath returns the library root the client operates on.
func (c *Client) LibraryPath() string {
	return c.libraryPath
}

// ListDocuments enumerates every document with its stored formats. Malformed
// records are skipped with a warning and reported in Listing.Rejected.
func (c *Client) ListDocuments(ctx context.Context) (Listing, error) {
	var (
		listing Listing
		err     error
	)
	if c.metadb != nil {
		listing, err = c.metadb.ListDocuments(ctx)
	} else {
		listing, err = c.listViaCLI(ctx, "")
	}
	if err != nil {
		return Listing{}, err
	}
	for _, rejected := range listing.Rejected {
		logging.WarnWithContext(c.logger, "skipping malformed catalog record", "catalog_record_rejected",
			logging.Int("record_index", rejected.Index),
			logging.String("reason", rejected.Reason),
			logging.String(logging.FieldErrorHint, "inspect the record with calibredb list --for-machine"),
			logging.String(logging.FieldImpact, "document not considered for conversion this run"),
		)
	}
	c.logger.Debug("catalog listed",
		logging.Int("documents", len(listing.Documents)),
		logging.Int("rejected", len(listing.Rejected)),
	)
	return listing, nil
}

// ResolveSourcePath finds the stored file for id in format. The catalog's
// recorded path wins when it exists on disk; otherwise the library root is
// searched.
func (c *Client) ResolveSourcePath(ctx context.Context, id string, format formats.Format) (Resolution, error) {
	if err := validateID(id); err != nil {
		return Resolution{}, services.Wrap(services.ErrSourceNotFound, "resolving", "", "", err)
	}

	path, lookupErr := c.storedPath(ctx, id, format)
	if lookupErr == nil {
		if fileExists(path) {
			return Resolution{Path: path, Method: ResolvedViaCatalog}, nil
		}
		lookupErr = fmt.Errorf("catalog path %s does not exist", path)
	}
	c.logger.Debug("catalog path lookup failed; searching library",
		logging.String(logging.FieldDocumentID, id),
		logging.String("format", format.String()),
		logging.Error(lookupErr),
	)

	path, searchErr := searchLibrary(ctx, c.libraryPath, id, format)
	if searchErr == nil {
		return Resolution{Path: path, Method: ResolvedViaSearch}, nil
	}

	return Resolution{Method: NotFound}, services.Wrap(
		services.ErrSourceNotFound,
		"resolving",
		"",
		fmt.Sprintf("no %s file for document %s", format, id),
		errors.Join(lookupErr, searchErr),
	)
}

// RegisterFormat adds path as a new stored format of document id. The library
// manager copies the file into its own storage.
func (c *Client) RegisterFormat(ctx context.Context, id, path string) error {
	if err := validateID(id); err != nil {
		return services.Wrap(services.ErrRegistrationFailed, "registering", "", "", err)
	}
	args := []string{"add_format", "--library-path", c.libraryPath, "--dont-replace", id, path}
	if _, err := c.runner.Run(ctx, c.binary, args, c.timeout); err != nil {
		return services.Wrap(services.ErrRegistrationFailed, "registering", "calibredb add_format", "", err)
	}
	return nil
}

// Close releases the metadata.db handle if one is attached.
func (c *Client) Close() error {
	if c.metadb == nil {
		return nil
	}
	return c.metadb.Close()
}

func (c *Client) storedPath(ctx context.Context, id string, format formats.Format) (string, error) {
	if c.metadb != nil {
		return c.metadb.StoredPath(ctx, id, format)
	}
	return c.storedPathViaCLI(ctx, id, format)
}

func validateID(id string) error {
	if id == "" {
		return errors.New("empty document id")
	}
	if strings.HasPrefix(id, "-") || strings.ContainsAny(id, " \t\r\n") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
