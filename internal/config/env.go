package config

import "os"

// applyEnvOverrides lets deployment environments override file-based
// settings without editing the config. Only secrets and endpoints are
// overridable; structural settings stay in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGIL_DB_PATH"); v != "" {
		cfg.Store.DatabasePath = v
	}
	if v := os.Getenv("SIGIL_GENAI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
		cfg.Model.GenAIAPIKey = v
	}
	if v := os.Getenv("SIGIL_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("SIGIL_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("SIGIL_MODEL_ENDPOINT"); v != "" {
		cfg.Model.Endpoint = v
	}
	if v := os.Getenv("SIGIL_SYNC_BASE_URL"); v != "" {
		cfg.Sync.BaseURL = v
	}
	if v := os.Getenv("SIGIL_SESSION_ID"); v != "" {
		cfg.Agency.SessionID = v
	}
}
