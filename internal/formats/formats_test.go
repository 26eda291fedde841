package formats

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"epub", EPUB, false},
		{" .AZW3 ", AZW3, false},
		{"MOBI", MOBI, false},
		{"", "", true},
		{".", "", true},
		{"ep ub", "", true},
		{"x/y", "", true},
		{"ORIGINAL_EPUB", "original_epub", false},
		{".original_azw3", "original_azw3", false},
		{"_epub", "", true},
		{"epub_", "", true},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Parse(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("Parse(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestFromPath(t *testing.T) {
	if f, ok := FromPath("/lib/Author/Title (3)/Title - Author.AZW3"); !ok || f != AZW3 {
		t.Fatalf("unexpected format %q %v", f, ok)
	}
	if f, ok := FromPath("/lib/Author/Title (3)/Title - Author.original_azw3"); !ok || f != "original_azw3" {
		t.Fatalf("unexpected backup format %q %v", f, ok)
	}
	if _, ok := FromPath("/lib/cover"); ok {
		t.Fatal("expected no format for extensionless file")
	}
}

func TestSet(t *testing.T) {
	s := NewSet(MOBI, EPUB, "")
	if !s.Contains(MOBI) || !s.Contains(EPUB) || len(s) != 2 {
		t.Fatalf("unexpected set %v", s)
	}
	clone := s.Clone()
	clone.Add(PDF)
	if s.Contains(PDF) {
		t.Fatal("clone mutation leaked into original")
	}
	if got := clone.String(); got != "epub,mobi,pdf" {
		t.Fatalf("unexpected string %q", got)
	}
	if MOBI.Extension() != ".mobi" {
		t.Fatalf("unexpected extension %q", MOBI.Extension())
	}
}

func TestParseListStopsOnInvalid(t *testing.T) {
	if _, err := ParseList([]string{"mobi", "bad tag"}); err == nil {
		t.Fatal("expected error")
	}
	got, err := ParseList([]string{"mobi", "RTF"})
	if err != nil || len(got) != 2 || got[1] != RTF {
		t.Fatalf("unexpected result %v %v", got, err)
	}
}
