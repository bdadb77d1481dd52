package embedding

import "testing"

func TestNewGenAIEngineRequiresAPIKey(t *testing.T) {
	if _, err := NewGenAIEngine("", "", ""); err == nil {
		t.Error("expected error when the API key is missing")
	}
}
