package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParsedResponse is the structured view over a model reply. Fields is
// populated from the JSON path; Lines from the fallback text parser. Raw is
// always the untouched reply.
type ParsedResponse struct {
	Raw    string
	Fields map[string]any
	Lines  []string
}

// String returns the string value for key, or "" when missing.
func (p *ParsedResponse) String(key string) string {
	if p.Fields == nil {
		return ""
	}
	if s, ok := p.Fields[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// StringSlice returns the string-list value for key. When the JSON path
// produced nothing it falls back to the parsed lines, so callers work the
// same off either parser.
func (p *ParsedResponse) StringSlice(key string) []string {
	if p.Fields != nil {
		if raw, ok := p.Fields[key].([]any); ok {
			out := make([]string, 0, len(raw))
			for _, v := range raw {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return p.Lines
}

var (
	fencedBlock    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	listLinePrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.):]|\(\d+\))\s*`)
)

// parseResponse tries strict JSON first (including JSON wrapped in a fenced
// code block), then falls back to line-based extraction. Model format
// compliance is not guaranteed, so both paths are load-bearing.
func parseResponse(raw string) (*ParsedResponse, error) {
	resp := &ParsedResponse{Raw: raw}

	if fields, ok := parseJSONObject(raw); ok {
		resp.Fields = fields
		return resp, nil
	}

	lines := parseLines(raw)
	if len(lines) == 0 {
		return nil, &FormatError{Reason: "neither JSON nor list lines found"}
	}
	resp.Lines = lines
	return resp, nil
}

func parseJSONObject(raw string) (map[string]any, bool) {
	candidates := []string{strings.TrimSpace(raw)}
	for _, m := range fencedBlock.FindAllStringSubmatch(raw, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	// Last resort: the outermost brace span
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}

	for _, c := range candidates {
		if !strings.HasPrefix(c, "{") {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(c), &fields); err == nil {
			return fields, true
		}
	}
	return nil, false
}

// parseLines recovers list-shaped content from free text: bulleted or
// numbered lines are preferred, any non-empty lines accepted otherwise.
func parseLines(raw string) []string {
	var listed, plain []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if listLinePrefix.MatchString(line) {
			listed = append(listed, strings.TrimSpace(listLinePrefix.ReplaceAllString(line, "")))
			continue
		}
		plain = append(plain, trimmed)
	}
	if len(listed) > 0 {
		return listed
	}
	return plain
}
