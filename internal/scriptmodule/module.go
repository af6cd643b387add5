// SPDX-License-Identifier: MPL-2.0

package scriptmodule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/modhost/modhost/internal/events"
	"github.com/modhost/modhost/internal/hostlog"
	"github.com/modhost/modhost/internal/modhost"
)

const (
	initScript  = "init.sh"
	closeScript = "close.sh"
)

// Module runs a directory of shell scripts in place of compiled plugin
// code. On Init it subscribes to one event per ".sh" file found in dir
// (minus init.sh and close.sh, which are lifecycle hooks rather than
// event handlers) and, if present, runs init.sh. Each subsequent Event
// call runs the script named "<event-name>.sh" with the event payload
// exposed as JSON in the MODHOST_PAYLOAD environment variable. Close runs
// close.sh if present.
type Module struct {
	Name string
	Dir  string
	Log  *hostlog.Logger

	host     modhost.HostAPI
	handlers map[string]string // event name -> absolute script path
}

// New creates a Module whose event scripts live under dir.
func New(name, dir string) *Module {
	return &Module{Name: name, Dir: dir, Log: hostlog.NewNop()}
}

// NewFactory returns a modhost.Factory that constructs a script-backed
// Module rooted at dir, for use with Host.LoadModule when a manifest sets
// DisableNativeBuild.
func NewFactory(dir string) modhost.Factory {
	return func(_ context.Context, name string) (modhost.Module, error) {
		return New(name, dir), nil
	}
}

func (m *Module) Init(ctx context.Context, host modhost.HostAPI) error {
	m.host = host
	m.handlers = make(map[string]string)

	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		return fmt.Errorf("scriptmodule: read %s: %w", m.Dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sh") {
			continue
		}
		if entry.Name() == initScript || entry.Name() == closeScript {
			continue
		}
		eventName := strings.TrimSuffix(entry.Name(), ".sh")
		path := filepath.Join(m.Dir, entry.Name())
		if err := host.SubEvent(ctx, eventName); err != nil {
			return fmt.Errorf("scriptmodule: subscribe %q: %w", eventName, err)
		}
		m.handlers[eventName] = path
	}

	initPath := filepath.Join(m.Dir, initScript)
	if _, err := os.Stat(initPath); err == nil {
		if err := m.run(ctx, initPath, nil); err != nil {
			return fmt.Errorf("scriptmodule: %s: %w", initScript, err)
		}
	}
	return nil
}

func (m *Module) Event(ctx context.Context, ev events.Event) error {
	path, ok := m.handlers[ev.Name]
	if !ok {
		return nil
	}
	return m.run(ctx, path, ev.Payload)
}

func (m *Module) Close(ctx context.Context) error {
	closePath := filepath.Join(m.Dir, closeScript)
	if _, err := os.Stat(closePath); err != nil {
		return nil
	}
	return m.run(ctx, closePath, nil)
}

// run parses and executes a single script file with payload JSON-encoded
// into the MODHOST_PAYLOAD environment variable.
func (m *Module) run(ctx context.Context, path string, payload any) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scriptmodule: read %s: %w", path, err)
	}

	prog, err := syntax.NewParser().Parse(bytes.NewReader(src), path)
	if err != nil {
		return fmt.Errorf("scriptmodule: parse %s: %w", path, err)
	}

	env := os.Environ()
	env = append(env, "MODHOST_MODULE="+m.Name)
	if payload != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			env = append(env, "MODHOST_PAYLOAD="+string(encoded))
		}
	}

	var stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(m.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, os.Stdout, &stderr),
	)
	if err != nil {
		return fmt.Errorf("scriptmodule: create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		return fmt.Errorf("scriptmodule: run %s: %w (%s)", path, err, stderr.String())
	}
	return nil
}
