package mediafetch

import "testing"

func TestParseContentType(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"application/pdf; charset=binary", "application/pdf", true},
		{"audio/mpeg", "audio/mpeg", true},
		{"Image/PNG", "image/png", true},
		{"text/plain;charset=", "text/plain", true},
		{"", "", false},
		{"garbage", "", false},
		{"/pdf", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseContentType(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseContentType(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseContentDispositionFilename(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"quoted", `attachment; filename="a.pdf"`, "a.pdf", true},
		{"unquoted", `attachment; filename=report.csv`, "report.csv", true},
		{"unquoted with spaces", `attachment; filename=my report.pdf`, "my report.pdf", true},
		{"single quoted", `attachment; filename='notes.txt'`, "notes.txt", true},
		{"rfc5987 wins", `attachment; filename="fallback.txt"; filename*=UTF-8''na%C3%AFve.txt`, "naïve.txt", true},
		{"nfc normalized", "attachment; filename=\"cafe\u0301.txt\"", "caf\u00e9.txt", true},
		{"path stripped", `attachment; filename="../../etc/passwd"`, "passwd", true},
		{"windows path stripped", `attachment; filename="C:\\temp\\x.doc"`, "x.doc", true},
		{"no filename", `inline`, "", false},
		{"empty filename", `attachment; filename=""`, "", false},
		{"dot dot", `attachment; filename=".."`, "", false},
		{"empty header", ``, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseContentDispositionFilename(tc.header)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("ParseContentDispositionFilename(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestStorageName(t *testing.T) {
	if got := StorageName(5, "77", "a.pdf"); got != "5_77_a.pdf" {
		t.Fatalf("StorageName = %q", got)
	}
	if got := StorageName(5, "77", ""); got != "5_77" {
		t.Fatalf("StorageName without origin = %q", got)
	}
	if got := StorageName(5, "x/y", ""); got != "5_x_y" {
		t.Fatalf("StorageName should strip separators, got %q", got)
	}
}
