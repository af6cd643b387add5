// SPDX-License-Identifier: MPL-2.0

package scriptmodule

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modhost/modhost/internal/events"
	"github.com/modhost/modhost/internal/modhost"
)

// stubHostAPI implements modhost.HostAPI with no-op behavior beyond
// recording SubEvent calls, enough to exercise Module.Init/Event in
// isolation from a real Host.
type stubHostAPI struct {
	subscribed []string
}

func (s *stubHostAPI) SubEvent(ctx context.Context, eventName string) error {
	s.subscribed = append(s.subscribed, eventName)
	return nil
}
func (s *stubHostAPI) EmitEvent(ctx context.Context, eventName string, payload any)     {}
func (s *stubHostAPI) EmitEventSync(ctx context.Context, eventName string, payload any) {}
func (s *stubHostAPI) AccessModule(ctx context.Context, target string, fn func(ctx context.Context, m modhost.Module) error) error {
	return nil
}
func (s *stubHostAPI) LoadModule(ctx context.Context, info modhost.ModuleInfo) error { return nil }
func (s *stubHostAPI) UnloadModule(name string)                                      {}
func (s *stubHostAPI) ReloadModule(info modhost.ModuleInfo)                          {}
func (s *stubHostAPI) GetModule(name string) (modhost.Module, bool)                  { return nil, false }
func (s *stubHostAPI) HasModule(name string) bool                                    { return false }
func (s *stubHostAPI) CheckModule(name string) error                                 { return nil }
func (s *stubHostAPI) GetModulePath(name string) (string, bool)                      { return "", false }
func (s *stubHostAPI) GetLoadedModules() []string                                     { return nil }
func (s *stubHostAPI) Shutdown(code int, reason string)                              {}
func (s *stubHostAPI) TmpStoreData(key string, v any)                                 {}
func (s *stubHostAPI) TmpRestoreData(key string) (any, bool)                         { return nil, false }
func (s *stubHostAPI) AddFilePath(key, path string)                                  {}
func (s *stubHostAPI) GetFilePath(key string) (string, bool)                         { return "", false }

func TestModule_InitSubscribesToScriptEvents(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "tick.sh"), "#!/bin/sh\necho ticked\n")
	mustWrite(t, filepath.Join(dir, "init.sh"), "#!/bin/sh\necho init\n")

	m := New("physics", dir)
	host := &stubHostAPI{}
	if err := m.Init(context.Background(), host); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := m.handlers["tick"]; !ok {
		t.Fatalf("expected handler for %q, got %v", "tick", m.handlers)
	}
	if len(host.subscribed) != 1 || host.subscribed[0] != "tick" {
		t.Fatalf("subscribed = %v, want [tick]", host.subscribed)
	}
}

func TestModule_EventRunsMatchingScript(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	mustWrite(t, filepath.Join(dir, "tick.sh"), "#!/bin/sh\necho \"$MODHOST_PAYLOAD\" > "+outPath+"\n")

	m := New("physics", dir)
	host := &stubHostAPI{}
	if err := m.Init(context.Background(), host); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ev := events.New("tick", "driver", map[string]any{"dt": 0.016})
	if err := m.Event(context.Background(), ev); err != nil {
		t.Fatalf("Event: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected script to write payload, got empty file")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
