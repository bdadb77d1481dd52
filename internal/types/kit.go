package types

// KitDefinition is a named bundle of symbol ids: an ordered triad, an
// optional anchor, and an exec list.
type KitDefinition struct {
	Kit    string   `json:"kit"`
	Name   string   `json:"name,omitempty"`
	Triad  []string `json:"triad,omitempty"`
	Anchor string   `json:"anchor,omitempty"`
	Exec   []string `json:"exec,omitempty"`
}

// KitEntry is one resolved member of a kit. Symbol is nil when the referenced
// id is not present in the store; callers must handle both shapes.
type KitEntry struct {
	ID     string  `json:"id"`
	Symbol *Symbol `json:"symbol,omitempty"`
}

// ResolvedKit is a kit with each member substituted by the live symbol where
// one exists.
type ResolvedKit struct {
	Kit    string     `json:"kit"`
	Name   string     `json:"name,omitempty"`
	Triad  []KitEntry `json:"triad"`
	Anchor *KitEntry  `json:"anchor,omitempty"`
	Exec   []KitEntry `json:"exec"`
}

// Symbols returns every resolved symbol in the kit, triad first, then anchor,
// then exec, in catalog order.
func (k *ResolvedKit) Symbols() []*Symbol {
	if k == nil {
		return nil
	}
	var out []*Symbol
	for _, entry := range k.Triad {
		if entry.Symbol != nil {
			out = append(out, entry.Symbol)
		}
	}
	if k.Anchor != nil && k.Anchor.Symbol != nil {
		out = append(out, k.Anchor.Symbol)
	}
	for _, entry := range k.Exec {
		if entry.Symbol != nil {
			out = append(out, entry.Symbol)
		}
	}
	return out
}
