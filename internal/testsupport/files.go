package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes contents to path, creating parent directories.
func WriteFile(t testing.TB, path, contents string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteLegacyMappings writes a JSON object file in the format the previous
// bot used for its Slack-to-Drive mapping.
func WriteLegacyMappings(t testing.TB, path string, mappings map[string]string) string {
	t.Helper()

	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		t.Fatalf("marshal mappings: %v", err)
	}
	return WriteFile(t, path, string(data))
}
