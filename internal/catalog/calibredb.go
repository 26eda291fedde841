package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"libconv/internal/formats"
	"libconv/internal/services"
)

func (c *Client) listViaCLI(ctx context.Context, search string) (Listing, error) {
	args := []string{"list", "--library-path", c.libraryPath, "--for-machine", "--fields", "title,formats"}
	if search != "" {
		args = append(args, "--search", search)
	}
	res, err := c.runner.Run(ctx, c.binary, args, c.timeout)
	if err != nil {
		return Listing{}, services.Wrap(services.ErrCatalogUnavailable, "listing", "calibredb list", "", err)
	}
	listing, err := parseListing(res.Stdout)
	if err != nil {
		return Listing{}, services.Wrap(services.ErrCatalogUnavailable, "listing", "parse calibredb output", "", err)
	}
	return listing, nil
}

// parseListing decodes `calibredb list --for-machine` output: a JSON array of
// objects carrying id, title, and formats (absolute paths of stored files).
// Each record is decoded on its own so one bad entry cannot sink the listing.
func parseListing(data []byte) (Listing, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Listing{}, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return Listing{}, fmt.Errorf("decode listing: %w", err)
	}
	listing := Listing{Documents: make([]Document, 0, len(records))}
	for idx, raw := range records {
		doc, err := decodeRecord(raw)
		if err != nil {
			listing.Rejected = append(listing.Rejected, RejectedRecord{Index: idx, Reason: err.Error()})
			continue
		}
		listing.Documents = append(listing.Documents, doc)
	}
	return listing, nil
}

type listRecord struct {
	ID      json.RawMessage `json:"id"`
	Title   json.RawMessage `json:"title"`
	Formats json.RawMessage `json:"formats"`
}

func decodeRecord(raw json.RawMessage) (Document, error) {
	var rec listRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Document{}, fmt.Errorf("decode record: %w", err)
	}
	id, err := decodeID(rec.ID)
	if err != nil {
		return Document{}, err
	}
	doc := Document{ID: id, Formats: formats.NewSet(), Paths: map[formats.Format]string{}}

	if len(rec.Title) > 0 && string(rec.Title) != "null" {
		if err := json.Unmarshal(rec.Title, &doc.Title); err != nil {
			return Document{}, fmt.Errorf("document %s: title is not a string", id)
		}
	}

	if len(rec.Formats) == 0 || string(rec.Formats) == "null" {
		return doc, nil
	}
	var paths []string
	if err := json.Unmarshal(rec.Formats, &paths); err != nil {
		return Document{}, fmt.Errorf("document %s: formats is not a list of paths", id)
	}
	for _, path := range paths {
		format, ok := formats.FromPath(path)
		if !ok {
			return Document{}, fmt.Errorf("document %s: cannot derive format from %q", id, path)
		}
		doc.Formats.Add(format)
		if _, seen := doc.Paths[format]; !seen {
			doc.Paths[format] = path
		}
	}
	return doc, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("record has no id")
	}
	var id string
	var number int64
	if err := json.Unmarshal(raw, &number); err == nil {
		id = strconv.FormatInt(number, 10)
	} else if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("unsupported id %s", string(raw))
	}
	id = strings.TrimSpace(id)
	if err := validateID(id); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) storedPathViaCLI(ctx context.Context, id string, format formats.Format) (string, error) {
	listing, err := c.listViaCLI(ctx, "id:"+id)
	if err != nil {
		return "", err
	}
	for _, doc := range listing.Documents {
		if doc.ID != id {
			continue
		}
		if path, ok := doc.Paths[format]; ok {
			return path, nil
		}
		return "", fmt.Errorf("document %s has no stored %s", id, format)
	}
	return "", fmt.Errorf("document %s not in catalog", id)
}
