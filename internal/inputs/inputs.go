// Package inputs reads batch inputs from files.
//
// Three formats are recognised by file extension: a YAML list (.yaml, .yml), a
// JSON array (.json), and plain text with one input per line for anything else.
// Text files skip blank lines and lines starting with '#'.
package inputs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies an inputs file encoding.
type Format int

const (
	FormatText Format = iota
	FormatYAML
	FormatJSON
)

// ErrEmpty is returned when an inputs source holds no inputs.
var ErrEmpty = errors.New("no inputs")

// FormatFor picks the format from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Load reads inputs from path. A path of "-" reads text from stdin.
func Load(path string) ([]string, error) {
	if path == "-" {
		return Read(os.Stdin, FormatText)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening inputs: %w", err)
	}
	defer f.Close()

	list, err := Read(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return list, nil
}

// Read decodes inputs from r in the given format.
func Read(r io.Reader, format Format) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var list []string
	switch format {
	case FormatYAML:
		list, err = parseYAML(data)
	case FormatJSON:
		list, err = parseJSON(data)
	default:
		list, err = parseText(data)
	}
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrEmpty
	}
	return list, nil
}

func parseYAML(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing YAML list: %w", err)
	}
	return list, nil
}

func parseJSON(data []byte) ([]string, error) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing JSON array: %w", err)
	}

	list := make([]string, 0, len(raw))
	for i, v := range raw {
		switch v := v.(type) {
		case string:
			list = append(list, v)
		case float64, bool:
			list = append(list, fmt.Sprint(v))
		default:
			return nil, fmt.Errorf("element %d: expected a scalar, got %T", i, v)
		}
	}
	return list, nil
}

func parseText(data []byte) ([]string, error) {
	var list []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	return list, scanner.Err()
}

// ToAny converts a list of inputs into the form the runner accepts.
func ToAny(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}
