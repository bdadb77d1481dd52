// Package types defines the core entities of the sigil knowledge graph:
// symbols, agent personas, and kit definitions.
package types

import (
	"encoding/json"
)

// Facets carries the optional structured classification of a symbol.
type Facets struct {
	Function   string   `json:"function,omitempty"`
	Topology   string   `json:"topology,omitempty"`
	Temporal   string   `json:"temporal,omitempty"`
	Substrate  []string `json:"substrate,omitempty"`
	Invariants []string `json:"invariants,omitempty"`
}

// Symbol is a typed knowledge-graph node. The id is the only required field;
// everything else is descriptive. Fields not known to this schema version are
// preserved verbatim in Extra so newer catalogs round-trip without loss.
type Symbol struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Macro       string   `json:"macro,omitempty"`
	Triad       []string `json:"triad,omitempty"`
	Facets      *Facets  `json:"facets,omitempty"`
	Invocations []string `json:"invocations,omitempty"`
	Linked      []string `json:"lnk,omitempty"`
	Domain      string   `json:"symbol_domain,omitempty"`
	Tag         string   `json:"symbol_tag,omitempty"`
	Version     int      `json:"version,omitempty"`

	// Extra holds unknown fields round-tripped opaquely.
	Extra map[string]json.RawMessage `json:"-"`

	// Relevance is a runtime score for context packing. It is never
	// persisted.
	Relevance float64 `json:"-"`
}

// symbolAlias avoids recursive (Un)MarshalJSON calls.
type symbolAlias Symbol

// knownSymbolKeys are the JSON keys owned by the typed schema above.
var knownSymbolKeys = map[string]bool{
	"id":            true,
	"name":          true,
	"description":   true,
	"macro":         true,
	"triad":         true,
	"facets":        true,
	"invocations":   true,
	"lnk":           true,
	"symbol_domain": true,
	"symbol_tag":    true,
	"version":       true,
}

// UnmarshalJSON decodes the typed fields and stashes everything else in Extra.
func (s *Symbol) UnmarshalJSON(data []byte) error {
	var alias symbolAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownSymbolKeys[key] {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}

	*s = Symbol(alias)
	return nil
}

// MarshalJSON emits the typed fields plus the preserved Extra keys. Typed
// fields win on key collision.
func (s Symbol) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(symbolAlias(s))
	if err != nil {
		return nil, err
	}

	if len(s.Extra) == 0 {
		return typed, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(typed, &merged); err != nil {
		return nil, err
	}
	for key, val := range s.Extra {
		if _, owned := merged[key]; !owned {
			merged[key] = val
		}
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy safe to mutate independently.
func (s *Symbol) Clone() *Symbol {
	if s == nil {
		return nil
	}
	out := *s
	out.Triad = append([]string(nil), s.Triad...)
	out.Invocations = append([]string(nil), s.Invocations...)
	out.Linked = append([]string(nil), s.Linked...)
	if s.Facets != nil {
		facets := *s.Facets
		facets.Substrate = append([]string(nil), s.Facets.Substrate...)
		facets.Invariants = append([]string(nil), s.Facets.Invariants...)
		out.Facets = &facets
	}
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}
