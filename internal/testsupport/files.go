package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteDocumentFile creates a placeholder e-book at path. The body names the
// format taken from the extension and is padded to at least size bytes so
// tests can tell sources and converted outputs apart by content.
func WriteDocumentFile(t testing.TB, path string, size int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "libconv test document format=%s name=%s\n", format, filepath.Base(path))
	if pad := size - buf.Len(); pad > 0 {
		buf.Write(bytes.Repeat([]byte{'.'}, pad))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
