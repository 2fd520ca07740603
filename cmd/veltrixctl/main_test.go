package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/veltrix/internal/app"
	"github.com/ashureev/veltrix/internal/assistant"
	"github.com/ashureev/veltrix/internal/config"
	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/store"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "veltrix.yaml")
	body := "db_path: " + filepath.Join(dir, "veltrix.db") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("veltrixctl %v failed: %v", args, err)
	}
	return out.String()
}

func scripted(lines ...string) func() (string, error) {
	return func() (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		next := lines[0]
		lines = lines[1:]
		return next, nil
	}
}

func TestChatLoop(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "chat.db")
	cfg.SeedDemoData = true
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	var out bytes.Buffer
	who := assistant.Request{UserID: store.DemoCustomerID, Role: domain.RoleCustomer}
	err = chatLoop(context.Background(), a.Engine, who, scripted("hi", "", "browse", "/reset", "/quit", "never read"), &out)
	if err != nil {
		t.Fatalf("chatLoop failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"[GREETING]\nVeltrix online. State your objective, gamer.",
		"Available categories:",
		"session cleared",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
	if strings.Contains(got, "never read") {
		t.Fatal("input after /quit must not be processed")
	}
}

func TestSeedThenTranscript(t *testing.T) {
	path := writeConfig(t)

	if out := execute(t, "--config", path, "seed"); !strings.Contains(out, "Seeded") {
		t.Fatalf("unexpected seed output: %q", out)
	}

	if out := execute(t, "--config", path, "transcript", "nobody"); !strings.Contains(out, "No transcript.") {
		t.Fatalf("unexpected empty transcript output: %q", out)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	if _, err := a.Engine.Reply(context.Background(), assistant.Request{UserID: "u1", Message: "hi"}); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	_ = a.Close()

	out := execute(t, "--config", path, "transcript", "u1", "--json")
	var messages []domain.Message
	if err := json.Unmarshal([]byte(out), &messages); err != nil {
		t.Fatalf("decode transcript: %v\n%s", err, out)
	}
	if len(messages) != 2 || messages[0].Text != "hi" {
		t.Fatalf("unexpected transcript: %+v", messages)
	}
}
