package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"libconv/internal/config"
)

// FakeLibrary is an on-disk Calibre-shaped library served by stub calibredb
// and ebook-convert scripts. The calibredb stub answers `list` from a JSON
// file and appends every `add_format` invocation to a log.
type FakeLibrary struct {
	t           testing.TB
	Root        string
	ListingPath string
	AddLogPath  string
	ConvertLog  string
	Calibredb   string
	Converter   string
	records     []map[string]any
}

// NewFakeLibrary installs the stubs and points cfg at them.
func NewFakeLibrary(t testing.TB, cfg *config.Config) *FakeLibrary {
	t.Helper()
	base := BaseDir(cfg)
	lib := &FakeLibrary{
		t:           t,
		Root:        cfg.Library.Path,
		ListingPath: filepath.Join(base, "calibre", "listing.json"),
		AddLogPath:  filepath.Join(base, "calibre", "add_format.log"),
		ConvertLog:  filepath.Join(base, "calibre", "convert.log"),
	}
	lib.writeListing()

	lib.Calibredb = WriteScript(t, filepath.Join(base, "calibre", "calibredb"), fmt.Sprintf(`case "$1" in
  --version) echo "calibredb (calibre 7.0)" ;;
  list) cat %q ;;
  add_format) shift; echo "$*" >> %q ;;
  *) echo "unsupported command: $1" >&2; exit 2 ;;
esac`, lib.ListingPath, lib.AddLogPath))
	lib.SetConverter(`cp "$1" "$2"`)

	cfg.Library.CalibredbBinary = lib.Calibredb
	cfg.Conversion.ConverterBinary = lib.Converter
	return lib
}

// SetConverter replaces the ebook-convert stub body. Every invocation is
// logged before body runs.
func (l *FakeLibrary) SetConverter(body string) {
	l.t.Helper()
	l.Converter = WriteScript(l.t, filepath.Join(filepath.Dir(l.ListingPath), "ebook-convert"), fmt.Sprintf(`if [ "$1" = "--version" ]; then echo "ebook-convert (calibre 7.0)"; exit 0; fi
echo "$1" >> %q
%s`, l.ConvertLog, body))
}

// AddDocument stores one file per format under "Author/<title> (<id>)/" and
// lists the document.
func (l *FakeLibrary) AddDocument(id int, title string, formats ...string) {
	l.t.Helper()
	dir := filepath.Join(l.Root, "Author", fmt.Sprintf("%s (%d)", title, id))
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(dir, title+"."+f)
		WriteDocumentFile(l.t, path, 64)
		paths = append(paths, path)
	}
	l.records = append(l.records, map[string]any{"id": id, "title": title, "formats": paths})
	l.writeListing()
}

// AddRawRecord lists an arbitrary record, for malformed-input tests.
func (l *FakeLibrary) AddRawRecord(record map[string]any) {
	l.t.Helper()
	l.records = append(l.records, record)
	l.writeListing()
}

// Registrations returns the logged add_format argument lines.
func (l *FakeLibrary) Registrations() []string {
	return readLines(l.t, l.AddLogPath)
}

// Conversions returns the source paths the converter stub was invoked with.
func (l *FakeLibrary) Conversions() []string {
	return readLines(l.t, l.ConvertLog)
}

func (l *FakeLibrary) writeListing() {
	l.t.Helper()
	records := l.records
	if records == nil {
		records = []map[string]any{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		l.t.Fatalf("marshal listing: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.ListingPath), 0o755); err != nil {
		l.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(l.ListingPath, data, 0o644); err != nil {
		l.t.Fatalf("write listing: %v", err)
	}
}

func readLines(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
