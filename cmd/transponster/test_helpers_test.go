package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"transponster/internal/chat"
	"transponster/internal/config"
	"transponster/internal/daemon"
	"transponster/internal/logging"
	"transponster/internal/testsupport"
	"transponster/internal/transcript"
	"transponster/internal/translate"
	"transponster/internal/workflow"
)

type idleChat struct{}

func (idleChat) FileInfo(context.Context, string) (chat.File, error) {
	return chat.File{}, errors.New("not used")
}
func (idleChat) Download(context.Context, chat.File, io.Writer) error { return nil }
func (idleChat) Upload(context.Context, chat.Upload) (chat.File, error) {
	return chat.File{}, nil
}
func (idleChat) PostMessage(context.Context, string, string, string) error { return nil }
func (idleChat) ThreadMessage(context.Context, string, string) (chat.Message, error) {
	return chat.Message{}, nil
}
func (idleChat) UserName(context.Context, string) (string, error) { return "", nil }

type idleTranscriber struct{}

func (idleTranscriber) Transcribe(context.Context, string, io.Reader) (transcript.Result, error) {
	return transcript.Result{}, nil
}

type echoModel struct{}

func (echoModel) TranslateBatch(_ context.Context, texts []string, _ string) ([]string, error) {
	return texts, nil
}

type noEvents struct{}

func (noEvents) ServeHTTP(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
func (noEvents) Wait()                                           {}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	// apiAddr is the live daemon address, or a closed port when no daemon runs.
	apiAddr string
}

// setupCLITestEnv writes a config file whose api_bind points at a closed
// port, so API commands fall back to the local store.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.APIBind = closedAddress(t)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, apiAddr: cfg.Paths.APIBind}
}

// startTestDaemon serves the daemon API for env on an ephemeral port.
func startTestDaemon(t *testing.T, env *cliTestEnv) *daemon.Daemon {
	t.Helper()

	daemonCfg := *env.cfg
	daemonCfg.Paths.APIBind = "127.0.0.1:0"
	store := testsupport.MustOpenStore(t, &daemonCfg)
	mgr := workflow.NewManager(&daemonCfg, idleChat{}, idleTranscriber{}, translate.New(echoModel{}))
	d, err := daemon.New(&daemonCfg, store, logging.NewNop(), mgr, noEvents{}, daemon.WithBotUser("Team/transponster"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(d.Stop)
	env.apiAddr = d.Address()
	return d
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.apiAddr, e.configPath)
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func closedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
