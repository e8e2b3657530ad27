package inputs

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// TestLoad verifies each format is selected by extension and decoded.
func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
	}{
		{
			name:    "yaml list",
			file:    "inputs.yaml",
			content: "- a.txt\n- b.txt\n- 42\n",
			want:    []string{"a.txt", "b.txt", "42"},
		},
		{
			name:    "yml extension",
			file:    "inputs.yml",
			content: "[one, two]\n",
			want:    []string{"one", "two"},
		},
		{
			name:    "json array",
			file:    "inputs.json",
			content: `["x", 3, true]`,
			want:    []string{"x", "3", "true"},
		},
		{
			name:    "text with comments and blanks",
			file:    "inputs.txt",
			content: "# files to process\nfirst\n\n  second  \n#skip\nthird\n",
			want:    []string{"first", "second", "third"},
		},
		{
			name:    "no extension is text",
			file:    "inputs",
			content: "only\n",
			want:    []string{"only"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestLoad_Errors covers malformed and empty sources.
func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		empty   bool
	}{
		{name: "yaml mapping", file: "bad.yaml", content: "key: value\n"},
		{name: "json object", file: "bad.json", content: `{"a": 1}`},
		{name: "json nested", file: "nested.json", content: `[["a"]]`},
		{name: "empty json", file: "empty.json", content: `[]`, empty: true},
		{name: "only comments", file: "empty.txt", content: "# nothing\n\n", empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrEmpty); got != tt.empty {
				t.Errorf("errors.Is(err, ErrEmpty) = %v, want %v (err: %v)", got, tt.empty, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestRead_Text(t *testing.T) {
	got, err := Read(strings.NewReader("a\r\nb\n"), FormatText)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("unexpected inputs %q", got)
	}
}

func TestToAny(t *testing.T) {
	got := ToAny([]string{"a", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected conversion %v", got)
	}
}
