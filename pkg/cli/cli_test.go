package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poltergeist/reactor/pkg/cli"
	"github.com/poltergeist/reactor/pkg/repository"
	"github.com/poltergeist/reactor/pkg/types"
)

const parentDescriptor = `group: com.example
artifact: parent
version: "1.0"
packaging: pom
modules:
  - core
  - service
`

const coreDescriptor = `parent:
  group: com.example
  artifact: parent
  version: "1.0"
artifact: core
`

const serviceDescriptor = `parent:
  group: com.example
  artifact: parent
  version: "1.0"
artifact: service
dependencies:
  - group: com.example
    artifact: core
    version: ${project.version}
`

type workspace struct {
	root     string
	repo     string
	settings string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newWorkspace(t *testing.T, service string) *workspace {
	t.Helper()
	dir := t.TempDir()
	ws := &workspace{
		root:     filepath.Join(dir, "project"),
		repo:     filepath.Join(dir, "repo"),
		settings: filepath.Join(dir, "settings.yaml"),
	}
	writeFile(t, filepath.Join(ws.root, "reactor.yaml"), parentDescriptor)
	writeFile(t, filepath.Join(ws.root, "core", "reactor.yaml"), coreDescriptor)
	writeFile(t, filepath.Join(ws.root, "service", "reactor.yaml"), service)
	writeFile(t, ws.settings, "localRepository: "+ws.repo+"\n")
	return ws
}

func run(t *testing.T, ws *workspace, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := cli.NewCLIWithOutput(cli.NewConfig(), &out, &errOut)
	full := append([]string{"--root", ws.root, "--settings", ws.settings, "-v", "error"}, args...)
	err := c.Execute(full)
	return out.String(), errOut.String(), err
}

func TestBuildCommand_Install(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)

	out, _, err := run(t, ws, "build", "clean", "install")
	if err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "BUILD SUCCESS") {
		t.Errorf("expected success in output:\n%s", out)
	}

	repo, err := repository.Open(ws.repo, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, artifact := range []string{"parent", "core", "service"} {
		c := types.Coordinate{Group: "com.example", Artifact: artifact, Version: "1.0"}
		if _, err := repo.FetchMetadata(context.Background(), c); err != nil {
			t.Errorf("expected %s to be installed: %v", artifact, err)
		}
	}
}

func TestBuildCommand_MissingDependencyFails(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor+`  - group: org.external
    artifact: missing
    version: "2.0"
`)

	out, _, err := run(t, ws, "build", "install")
	if !errors.Is(err, cli.ErrBuildFailed) {
		t.Fatalf("expected build failure, got %v", err)
	}
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected a not found cause, got %v", err)
	}
	if !strings.Contains(out, "BUILD FAILURE") || !strings.Contains(out, "[service]") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestBuildCommand_FailNeverSucceeds(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor+`  - group: org.external
    artifact: missing
    version: "2.0"
`)

	out, _, err := run(t, ws, "build", "install", "--fail-never")
	if err != nil {
		t.Fatalf("expected no error under fail-never, got %v", err)
	}
	if !strings.Contains(out, "FAILED") {
		t.Errorf("report should still list the failure:\n%s", out)
	}
}

func TestBuildCommand_FailModesAreExclusive(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)

	if _, _, err := run(t, ws, "build", "install", "--fail-fast", "--fail-never"); err == nil {
		t.Error("expected an error for conflicting fail modes")
	}
}

func TestBuildCommand_UnknownPhase(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)

	out, _, err := run(t, ws, "build", "compil")
	if !errors.Is(err, types.ErrUnknownPhase) {
		t.Fatalf("expected unknown phase, got %v", err)
	}
	if !strings.Contains(out, "Configuration errors:") {
		t.Errorf("expected configuration errors in report:\n%s", out)
	}
}

func TestBuildCommand_BadDefine(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)

	if _, _, err := run(t, ws, "build", "install", "-D", "novalue"); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("expected invalid configuration, got %v", err)
	}
}

func TestOrderCommand(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)

	out, _, err := run(t, ws, "order")
	if err != nil {
		t.Fatal(err)
	}
	core := strings.Index(out, "com.example:core:1.0")
	service := strings.Index(out, "com.example:service:1.0")
	if core < 0 || service < 0 || core > service {
		t.Errorf("expected core before service:\n%s", out)
	}
}

func TestTreeCommand(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)

	out, _, err := run(t, ws, "tree", "service")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "com.example:service:1.0") || !strings.Contains(out, "com.example:core:1.0") {
		t.Errorf("unexpected tree:\n%s", out)
	}

	if _, _, err := run(t, ws, "tree", "nope"); !errors.Is(err, types.ErrUnknownModule) {
		t.Errorf("expected unknown module, got %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ws := newWorkspace(t, serviceDescriptor)
		out, _, err := run(t, ws, "validate")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "3 module(s)") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("unresolved property", func(t *testing.T) {
		ws := newWorkspace(t, strings.Replace(serviceDescriptor, "${project.version}", "${core.version}", 1))
		_, errOut, err := run(t, ws, "validate")
		if !errors.Is(err, types.ErrUnresolvedProperty) {
			t.Fatalf("expected unresolved property, got %v", err)
		}
		if !strings.Contains(errOut, "Configuration errors:") {
			t.Errorf("expected configuration errors on stderr:\n%s", errOut)
		}
	})
}

func TestLifecyclesCommand(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)

	out, _, err := run(t, ws, "lifecycles")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"clean:", "default:", "site:", "  install\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)

	var out bytes.Buffer
	config := cli.NewConfig()
	config.Version = "1.2.3"
	c := cli.NewCLIWithOutput(config, &out, &bytes.Buffer{})
	if err := c.Execute([]string{"--settings", ws.settings, "version"}); err != nil {
		t.Fatal(err)
	}
	if out.String() != "reactor v1.2.3\n" {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestInvalidSettings(t *testing.T) {
	ws := newWorkspace(t, serviceDescriptor)
	writeFile(t, ws.settings, "localRepository: "+ws.repo+"\nfailMode: sometimes\n")

	if _, _, err := run(t, ws, "order"); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("expected invalid configuration, got %v", err)
	}
}
