// Package catalog loads the airport code list used by the search profile.
//
// The list is produced by the dataset generator and may be exported as plain
// text (one code per line), JSON or YAML. JSON and YAML documents may be either
// a bare list or an object with an "airports" key; list entries may be codes or
// objects carrying a "code" field.
package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned when a catalog file holds no airport codes.
var ErrEmpty = errors.New("catalog contains no airport codes")

// Format identifies a catalog encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks a format from the file extension. Unknown extensions are
// treated as text.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// Load reads airport codes from path. A missing file is returned as an error
// wrapping os.ErrNotExist. Codes are upper-cased, trimmed and de-duplicated in
// first-seen order.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open airport catalog: %w", err)
	}
	codes, err := Parse(data, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("parse airport catalog %s: %w", path, err)
	}
	return codes, nil
}

// Parse decodes catalog data in the given format.
func Parse(data []byte, format Format) ([]string, error) {
	var (
		raw []string
		err error
	)
	switch format {
	case FormatJSON:
		raw, err = parseJSON(data)
	case FormatYAML:
		raw, err = parseYAML(data)
	default:
		raw, err = parseText(data)
	}
	if err != nil {
		return nil, err
	}
	codes := normalize(raw)
	if len(codes) == 0 {
		return nil, ErrEmpty
	}
	return codes, nil
}

func parseText(data []byte) ([]string, error) {
	var codes []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return codes, nil
}

func parseJSON(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if root.IsObject() {
		root = root.Get("airports")
		if !root.Exists() {
			return nil, errors.New(`JSON object must contain an "airports" list`)
		}
	}
	if !root.IsArray() {
		return nil, errors.New("expected a JSON list of airports")
	}

	var codes []string
	var entryErr error
	idx := 0
	root.ForEach(func(_, entry gjson.Result) bool {
		defer func() { idx++ }()
		switch {
		case entry.Type == gjson.String:
			codes = append(codes, entry.String())
		case entry.IsObject() && entry.Get("code").Exists():
			codes = append(codes, entry.Get("code").String())
		default:
			entryErr = fmt.Errorf("entry %d: expected a code or an object with \"code\"", idx)
			return false
		}
		return true
	})
	if entryErr != nil {
		return nil, entryErr
	}
	return codes, nil
}

func parseYAML(data []byte) ([]string, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}
	if m, ok := doc.(map[string]interface{}); ok {
		list, ok := m["airports"]
		if !ok {
			return nil, errors.New(`YAML mapping must contain an "airports" list`)
		}
		doc = list
	}
	list, ok := doc.([]interface{})
	if !ok {
		return nil, errors.New("expected a YAML list of airports")
	}

	codes := make([]string, 0, len(list))
	for i, entry := range list {
		switch v := entry.(type) {
		case string:
			codes = append(codes, v)
		case map[string]interface{}:
			code, ok := v["code"].(string)
			if !ok {
				return nil, fmt.Errorf("entry %d: missing string \"code\"", i)
			}
			codes = append(codes, code)
		default:
			return nil, fmt.Errorf("entry %d: unsupported type %T", i, entry)
		}
	}
	return codes, nil
}

func normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	codes := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	return codes
}
