package plugins_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poltergeist/reactor/pkg/graph"
	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/plugins"
	"github.com/poltergeist/reactor/pkg/properties"
	"github.com/poltergeist/reactor/pkg/repository"
	"github.com/poltergeist/reactor/pkg/types"
)

func coreModule(dir string) *types.Module {
	return &types.Module{Group: "com.example", Artifact: "core", Version: "1.0", BaseDir: dir}
}

func props(m *types.Module) map[string]string {
	return map[string]string{
		properties.BaseDir:        m.BaseDir,
		properties.BuildDirectory: filepath.Join(m.BaseDir, "target"),
		properties.ProjectName:    m.Artifact,
		properties.ProjectVersion: m.Version,
		properties.ProjectPackage: string(m.PackagingOrDefault()),
	}
}

func request(m *types.Module, plugin, goal string, config map[string]string) lifecycle.GoalRequest {
	return lifecycle.GoalRequest{
		Goal:       types.Goal{Plugin: plugin, Name: goal, ExecutionID: "test", Configuration: config},
		Module:     m,
		Phase:      "compile",
		Properties: props(m),
	}
}

type graphs map[types.Key]*graph.Graph

func (g graphs) Graph(m *types.Module) (*graph.Graph, bool) {
	gr, ok := g[m.Key()]
	return gr, ok
}

func (g graphs) InBuild(c types.Coordinate) bool {
	for k := range g {
		if k == c.Key() {
			return true
		}
	}
	return false
}

func TestRegistry_UnknownPlugin(t *testing.T) {
	r := plugins.NewRegistry(nil)
	err := r.Execute(context.Background(), request(coreModule(t.TempDir()), "deploy", "deploy", nil))
	assert.ErrorIs(t, err, types.ErrUnknownPlugin)
}

func TestDefaults_RegistersBuiltins(t *testing.T) {
	r := plugins.Defaults(plugins.Config{})
	assert.Equal(t, []string{"clean:clean", "dependency:resolve", "exec:run", "install:install"}, r.Goals())
	assert.True(t, r.Has(types.Goal{Plugin: "exec", Name: "run"}))
}

func TestExec_RunsInModuleDirectory(t *testing.T) {
	dir := t.TempDir()
	m := coreModule(dir)

	err := plugins.NewExec(nil).Execute(context.Background(), request(m, "exec", "run", map[string]string{
		"command":      "echo $GREETING > out.txt",
		"env.GREETING": "hello",
	}))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	logData, err := os.ReadFile(filepath.Join(dir, "target", "logs", "exec-test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "SUCCEEDED")
}

func TestExec_Failure(t *testing.T) {
	m := coreModule(t.TempDir())

	err := plugins.NewExec(nil).Execute(context.Background(), request(m, "exec", "run", map[string]string{"command": "echo broken; exit 3"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	err = plugins.NewExec(nil).Execute(context.Background(), request(m, "exec", "run", nil))
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	m := coreModule(dir)
	target := filepath.Join(dir, "target", "classes")
	require.NoError(t, os.MkdirAll(target, 0o755))

	require.NoError(t, plugins.NewClean(nil).Execute(context.Background(), request(m, "clean", "clean", nil)))
	_, err := os.Stat(filepath.Join(dir, "target"))
	assert.True(t, os.IsNotExist(err))

	req := request(m, "clean", "clean", nil)
	req.Properties[properties.BuildDirectory] = dir
	assert.Error(t, plugins.NewClean(nil).Execute(context.Background(), req))
}

func TestResolve_ReportsMissingDependencies(t *testing.T) {
	repo := repository.New(memfs.New(), nil)
	present := types.Coordinate{Group: "org.slf4j", Artifact: "slf4j-api", Version: "2.0.0"}
	require.NoError(t, repo.Store(present, []byte("jar")))

	m := coreModule(t.TempDir())
	junit := types.Dependency{Group: "junit", Artifact: "junit", Version: "4.12", Scope: types.ScopeTest}
	deps := []types.Dependency{{Group: present.Group, Artifact: present.Artifact, Version: present.Version}, junit}
	g, err := graph.NewBuilder(repo, nil, nil).Build(context.Background(), m, deps, nil)
	require.NoError(t, err)

	resolve := plugins.NewResolve(repo, graphs{m.Key(): g}, nil)
	require.NoError(t, resolve.Execute(context.Background(), request(m, "dependency", "resolve", nil)))

	deps = append(deps, types.Dependency{Group: "com.acme", Artifact: "missing", Version: "1"})
	g, err = graph.NewBuilder(repo, nil, nil).Build(context.Background(), m, deps, nil)
	require.NoError(t, err)

	resolve = plugins.NewResolve(repo, graphs{m.Key(): g}, nil)
	err = resolve.Execute(context.Background(), request(m, "dependency", "resolve", nil))
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Contains(t, err.Error(), "com.acme:missing:1")
	assert.NotContains(t, err.Error(), "junit")
}

func TestInstall(t *testing.T) {
	repo := repository.New(memfs.New(), nil)
	m := coreModule(t.TempDir())
	m.Dependencies = []types.Dependency{{Group: "org.slf4j", Artifact: "slf4j-api", Version: "2.0.0"}}

	req := request(m, "install", "install", nil)
	artifact := plugins.ArtifactFile(req.Properties)
	assert.True(t, strings.HasSuffix(artifact, filepath.Join("target", "core-1.0.jar")))
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	require.NoError(t, os.WriteFile(artifact, []byte("compiled"), 0o644))

	source := metadataFunc(func(_ context.Context, c types.Coordinate) (*graph.Metadata, error) {
		return &graph.Metadata{Coordinate: c, Dependencies: m.Dependencies}, nil
	})
	require.NoError(t, plugins.NewInstall(repo, source, nil).Execute(context.Background(), req))

	data, err := repo.Fetch(m.Coordinate())
	require.NoError(t, err)
	assert.Equal(t, "compiled", string(data))

	meta, err := repo.FetchMetadata(context.Background(), m.Coordinate())
	require.NoError(t, err)
	assert.Equal(t, m.Dependencies, meta.Dependencies)
}

func TestInstall_PomAndMissingArtifact(t *testing.T) {
	repo := repository.New(memfs.New(), nil)

	parent := &types.Module{Group: "com.example", Artifact: "parent", Version: "1.0", Packaging: types.PackagingPom, BaseDir: t.TempDir()}
	require.NoError(t, plugins.NewInstall(repo, nil, nil).Execute(context.Background(), request(parent, "install", "install", nil)))
	assert.True(t, repo.Has(parent.Coordinate()))

	lib := coreModule(t.TempDir())
	require.NoError(t, plugins.NewInstall(repo, nil, nil).Execute(context.Background(), request(lib, "install", "install", nil)))
	assert.False(t, repo.Has(lib.Coordinate()))
	_, err := repo.FetchMetadata(context.Background(), lib.Coordinate())
	assert.NoError(t, err)
}

type metadataFunc func(ctx context.Context, c types.Coordinate) (*graph.Metadata, error)

func (f metadataFunc) FetchMetadata(ctx context.Context, c types.Coordinate) (*graph.Metadata, error) {
	return f(ctx, c)
}
