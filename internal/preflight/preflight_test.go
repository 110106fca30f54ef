package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transponster/internal/config"
	"transponster/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

// fakeServices answers the Slack, ElevenLabs and OpenRouter health endpoints.
func fakeServices(t *testing.T, sttKey string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/slack/auth.test":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "team": "Newsroom", "user": "transponster", "user_id": "UBOT"})
		case r.URL.Path == "/v1/user":
			if r.Header.Get("xi-api-key") != sttKey {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		case r.URL.Path == "/llm":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pointAt(cfg *config.Config, srv *httptest.Server) {
	cfg.Slack.APIURL = srv.URL + "/slack/"
	cfg.Transcription.BaseURL = srv.URL + "/v1/speech-to-text"
	cfg.LLM.BaseURL = srv.URL + "/llm"
}

func TestCheckSlack_MissingToken(t *testing.T) {
	result := CheckSlack(context.Background(), config.Slack{})
	if result.Passed {
		t.Fatal("expected failure for missing token")
	}
}

func TestCheckSlack_MissingSigningSecret(t *testing.T) {
	srv := fakeServices(t, "key")
	result := CheckSlack(context.Background(), config.Slack{BotToken: "xoxb", APIURL: srv.URL + "/slack/"})
	if result.Passed {
		t.Fatal("expected failure without signing secret")
	}
	if !strings.Contains(result.Detail, "Newsroom/transponster") {
		t.Fatalf("expected identity in detail, got %q", result.Detail)
	}
}

func TestCheckTranscription_BadKey(t *testing.T) {
	srv := fakeServices(t, "good-key")
	cfg := config.Default()
	pointAt(&cfg, srv)
	cfg.Transcription.APIKey = "bad-key"

	result := CheckTranscription(context.Background(), cfg.Transcription)
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "credentials rejected") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", config.LLM{})
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestCheckDrive_MissingCredentials(t *testing.T) {
	result := CheckDrive(context.Background(), config.Drive{Enabled: true, SharedDriveName: "Transcripts"})
	if result.Passed {
		t.Fatal("expected failure without credentials")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_AllPass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	pointAt(cfg, fakeServices(t, cfg.Transcription.APIKey))

	results := RunAll(context.Background(), cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		for _, r := range failed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesDriveWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pointAt(cfg, fakeServices(t, cfg.Transcription.APIKey))
	cfg.Drive.Enabled = true
	cfg.Drive.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	results := RunAll(context.Background(), cfg)
	found := false
	for _, r := range results {
		if r.Name == "Google Drive" {
			found = true
			if r.Passed {
				t.Error("expected Drive check to fail with missing credentials")
			}
		}
	}
	if !found {
		t.Fatal("expected Google Drive check in results")
	}
}
