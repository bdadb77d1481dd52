package types

// AgentPersona describes a named agent voice that can be activated into the
// working set. Personas are read-only at runtime; the catalog is the source
// of truth.
type AgentPersona struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Activation  string `json:"activation,omitempty"`
	Domain      string `json:"domain,omitempty"`
}
