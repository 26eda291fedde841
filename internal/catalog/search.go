package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"libconv/internal/formats"
)

var errNoSearchMatch = errors.New("no matching file under library root")

// searchLibrary walks root for a file in format that belongs to document id.
// A file matches when its extension equals the format and either its parent
// directory follows the Calibre "Title (id)" layout or its stem ends in "_id".
// Hidden directories (including Calibre's .caltrash) are not searched.
func searchLibrary(ctx context.Context, root, id string, format formats.Format) (string, error) {
	dirSuffix := " (" + id + ")"
	stemSuffix := "_" + id
	var match string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := entry.Name()
		if entry.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, format.Extension()) {
			return nil
		}
		stem := strings.TrimSuffix(name, ext)
		parent := filepath.Base(filepath.Dir(path))
		if strings.HasSuffix(parent, dirSuffix) || parent == "("+id+")" || strings.HasSuffix(stem, stemSuffix) {
			match = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s: %w", root, err)
	}
	if match == "" {
		return "", errNoSearchMatch
	}
	return match, nil
}
