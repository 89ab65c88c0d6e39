package invert

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainGo = `package main

func main() {
	done := false
	if !done {
		println("working")
	}
}
`

const mainTmpl = `{{define "status"}}{{if .Done}}done{{end}}{{end}}
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	d, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(d)
}

func TestEngineInvert(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"main.go": mainGo, "notes.txt": "done"})
	ctx := context.Background()
	e, err := Open(ctx, root, DefaultConfig())
	require.NoError(t, err)

	rep, err := e.Invert(ctx, "main.go:4:2", Options{})
	require.NoError(t, err)
	require.True(t, rep.Succeeded(), rep.Reason)
	assert.Equal(t, "golang", rep.Delegate)
	assert.Equal(t, &Location{File: "main.go", Line: 4, Column: 2, EndLine: 4, EndColumn: 6, Text: "done"}, rep.Element)

	want := []Usage{{
		Location: Location{File: "main.go", Line: 5, Column: 5, EndLine: 5, EndColumn: 10, Text: "!done"},
		Delegate: "golang",
	}}
	if diff := cmp.Diff(want, rep.Usages); diff != "" {
		t.Errorf("usages mismatch (-want +got):\n%s", diff)
	}

	inverted := "package main\n\nfunc main() {\n\tdone := true\n\tif done {\n\t\tprintln(\"working\")\n\t}\n}\n"
	assert.Equal(t, inverted, readFile(t, root, "main.go"))
	require.Len(t, rep.Changes, 1)
	assert.Equal(t, Change{File: "main.go", Before: mainGo, After: inverted}, rep.Changes[0])
	assert.Equal(t, "done", readFile(t, root, "notes.txt"))

	name, err := e.Undo()
	require.NoError(t, err)
	assert.Equal(t, "invert boolean", name)
	assert.Equal(t, mainGo, readFile(t, root, "main.go"))
}

func TestEngineUsagesDoesNotWrite(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"main.go": mainGo})
	ctx := context.Background()
	e, err := Open(ctx, root, DefaultConfig())
	require.NoError(t, err)

	rep, err := e.Usages(ctx, filepath.Join(root, "main.go")+":5:6")
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.True(t, rep.Succeeded())
	assert.Len(t, rep.Usages, 1)
	assert.Len(t, rep.Changes, 1)
	assert.Equal(t, mainGo, readFile(t, root, "main.go"))
}

func TestEngineRespectsConfiguration(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"main.go":            mainGo,
		"web/status.html":    mainTmpl,
		"vendor/dep/dep.go":  "package dep\n",
		"templates/old.tmpl": "{{.Done}}",
	})
	cfg := Config{
		Name: "test",
		Languages: []Language{
			{Name: "golang", Enabled: true},
			{Name: "gotmpl", Enabled: true, Extensions: []string{".html"}},
			{Name: "python", Enabled: false},
		},
		Exclude: []string{"vendor"},
	}
	e, err := Open(context.Background(), root, cfg)
	require.NoError(t, err)

	var paths []string
	for _, f := range e.project.Files() {
		paths = append(paths, f.Path())
	}
	assert.Equal(t, []string{"main.go", "web/status.html"}, paths)
}

func TestResolveTarget(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"main.go": mainGo})
	e, err := Open(context.Background(), root, DefaultConfig())
	require.NoError(t, err)

	elem, err := e.ResolveTarget("main.go:5:7")
	require.NoError(t, err)
	assert.Equal(t, "main.go", elem.Location().File.Path())

	tests := []struct {
		target string
		want   error
	}{
		{target: "main.go", want: ErrInvalidTarget},
		{target: "main.go:4", want: ErrInvalidTarget},
		{target: ":4:2", want: ErrInvalidTarget},
		{target: "main.go:x:2", want: ErrInvalidTarget},
		{target: "main.go:4:y", want: ErrInvalidTarget},
		{target: "main.go:5:1", want: ErrNoIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()
			_, err := e.ResolveTarget(tt.target)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = e.ResolveTarget("missing.go:1:1")
	assert.Error(t, err)
	_, err = e.ResolveTarget("main.go:99:1")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("languages in order", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".tinvert.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`name: web
languages:
  - name: gotmpl
    enabled: true
    extensions: [".html"]
  - name: golang
    enabled: true
exclude:
  - testdata
`), 0o644))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, Config{
			Name: "web",
			Languages: []Language{
				{Name: "gotmpl", Enabled: true, Extensions: []string{".html"}},
				{Name: "golang", Enabled: true},
			},
			Exclude: []string{"testdata"},
		}, cfg)
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".tinvert.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Languages, cfg.Languages)
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".tinvert.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rules: {}\n"), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("written defaults", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".tinvert.yaml")
		require.NoError(t, WriteConfig(path, DefaultConfig()))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestOpenRejectsUnknownLanguage(t *testing.T) {
	t.Parallel()

	cfg := Config{Languages: []Language{{Name: "cobol", Enabled: true}}}
	_, err := Open(context.Background(), t.TempDir(), cfg)
	assert.ErrorContains(t, err, "configure languages")
}
