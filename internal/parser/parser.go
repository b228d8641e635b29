// Package parser splits a source document into front matter and body.
//
// Two front matter styles are accepted: fenced, where the metadata block is
// preceded by a bare "---" line, and unfenced, where the document starts
// directly with the metadata block. Both end with a "---" line.
package parser

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/starford/scribe/internal/apperr"
)

// Delimiter separates front matter from the body.
const Delimiter = "---"

// Result holds the output of parsing a source document.
type Result struct {
	Metadata *Metadata
	// RawMetadata is the metadata block exactly as it appeared in the file.
	RawMetadata string
	Body        string
	Fenced      bool
}

// Parse splits data into metadata and body. Any structural problem is
// reported as an *apperr.MetadataError.
func Parse(data []byte) (*Result, error) {
	raw, body, fenced, err := Split(string(data))
	if err != nil {
		return nil, err
	}

	// Tabs are not valid YAML indentation.
	cleaned := strings.ReplaceAll(raw, "\t", "    ")

	var decoded any
	if err := yaml.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, &apperr.MetadataError{Reason: "YAML error parsing metadata: " + err.Error()}
	}

	fields, ok := toStringMap(decoded)
	if !ok {
		return nil, &apperr.MetadataError{Reason: fmt.Sprintf("metadata isn't a mapping, it's a %T", decoded)}
	}

	return &Result{
		Metadata:    NewMetadata(fields),
		RawMetadata: raw,
		Body:        body,
		Fenced:      fenced,
	}, nil
}

// Split separates the metadata block from the body without decoding it.
func Split(text string) (metadata, body string, fenced bool, err error) {
	rest := strings.TrimLeft(text, "\r\n")

	if line, after, ok := cutLine(rest); ok && isDelimiter(line) {
		fenced = true
		rest = strings.TrimLeft(after, "\r\n")
	}

	var block strings.Builder
	for rest != "" {
		line, after, _ := cutLine(rest)
		if isDelimiter(line) {
			metadata = strings.TrimRight(block.String(), "\r\n")
			if strings.TrimSpace(metadata) == "" {
				return "", "", fenced, &apperr.MetadataError{Reason: "metadata block is empty"}
			}
			return metadata, strings.TrimLeft(after, "\r\n"), fenced, nil
		}
		block.WriteString(line)
		block.WriteString("\n")
		rest = after
	}

	return "", "", fenced, &apperr.MetadataError{Reason: "closing delimiter not found"}
}

// cutLine returns the first line of s without its line ending and the
// remainder after it.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, found
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == Delimiter
}

func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[cast.ToString(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// StringList coerces a scalar or list metadata value into a list of
// non-empty strings. A scalar becomes a one-element list.
func StringList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
		return nil
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := strings.TrimSpace(cast.ToString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := cast.ToString(val); s != "" {
			return []string{s}
		}
		return nil
	}
}
