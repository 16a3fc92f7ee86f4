package estimation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"compras/internal/core"
)

var ErrEmptyResponse = errors.New("empty estimation response")

// ParseResponse reads the model output. Only invalid JSON is an error:
// a missing or malformed estimations array yields an empty set, entries
// without a name are dropped and unreadable quantities become zero.
// Markdown code fences around the JSON are ignored.
func ParseResponse(data []byte) ([]core.Estimation, error) {
	text := stripFences(string(data))
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return nil, fmt.Errorf("parse estimation response: %w", err)
	}
	raw, ok := top["estimations"]
	if !ok {
		return []core.Estimation{}, nil
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return []core.Estimation{}, nil
	}

	out := make([]core.Estimation, 0, len(entries))
	for _, e := range entries {
		name, _ := e["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		unit, _ := e["unit"].(string)
		out = append(out, core.Estimation{
			Name:              name,
			EstimatedQuantity: core.Sanitize(e["estimatedQuantity"]),
			Unit:              strings.TrimSpace(unit),
		})
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Set holds estimations keyed by lower-cased name. Later entries with the
// same name replace earlier ones.
type Set map[string]core.Estimation

func NewSet(list []core.Estimation) Set {
	s := make(Set, len(list))
	for _, e := range list {
		s[strings.ToLower(e.Name)] = e
	}
	return s
}

// Get looks an estimation up ignoring case.
func (s Set) Get(name string) (core.Estimation, bool) {
	e, ok := s[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// List returns the estimations ordered by key.
func (s Set) List() []core.Estimation {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]core.Estimation, 0, len(keys))
	for _, k := range keys {
		out = append(out, s[k])
	}
	return out
}

// Selections turns every estimation into an accepted selection with the
// suggested quantity.
func (s Set) Selections() []core.Selection {
	list := s.List()
	out := make([]core.Selection, 0, len(list))
	for _, e := range list {
		out = append(out, core.Selection{Name: e.Name, Quantity: e.EstimatedQuantity})
	}
	return out
}
