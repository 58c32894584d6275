package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quintans/stamp"
)

type stubRunner struct {
	commands []string
	exit     map[string]stamp.Result
}

func (r *stubRunner) Run(_ context.Context, c stamp.Command) (stamp.Result, error) {
	r.commands = append(r.commands, c.String())
	return r.exit[c.String()], nil
}

func newTemplateFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"work/template/__NAME__/README.md": "Hello __NAME__ (__SUBTYPE__) __AUTHOR__",
		"work/template/.stamp.yaml":        "derived:\n  - token: __LOWER__\n    value: \"{{ .Name | lower }}\"\n",
		"work/template/id.txt":             "__LOWER__",
		"work/values.yaml":                 "__AUTHOR__: Alice\n",
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

// isolateUserConfig points the XDG lookup at empty directories and returns the config home.
func isolateUserConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
	xdg.Reload()
	return home
}

// execute runs the root command without any user config.
func execute(t *testing.T, fs afero.Fs, runner stamp.ProcessRunner, args ...string) (string, string, error) {
	t.Helper()
	isolateUserConfig(t)
	return executeWithUserConfig(t, fs, runner, args...)
}

func executeWithUserConfig(t *testing.T, fs afero.Fs, runner stamp.ProcessRunner, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(fs, runner, &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCreatesProject(t *testing.T) {
	fs := newTemplateFS(t)
	runner := &stubRunner{}

	stdout, _, err := execute(t, fs, runner, "-t", "work/template", "--values", "work/values.yaml", "Widget", "wdgt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created work/Widget (2 files)")

	readme, err := afero.ReadFile(fs, "work/Widget/Widget/README.md")
	require.NoError(t, err)
	assert.Equal(t, "Hello Widget (wdgt) Alice", string(readme))

	id, err := afero.ReadFile(fs, "work/Widget/id.txt")
	require.NoError(t, err)
	assert.Equal(t, "widget", string(id))

	exists, err := afero.Exists(fs, "work/Widget/.stamp.yaml")
	require.NoError(t, err)
	assert.False(t, exists, "the manifest is not copied")

	assert.Equal(t, []string{"git init", "git add -A", "git commit -m " + stamp.CommitMessage}, runner.commands)
}

func TestRootNoGitAndOpen(t *testing.T) {
	fs := newTemplateFS(t)
	runner := &stubRunner{}
	t.Setenv("STAMP_OPEN__COMMAND", "open")

	_, _, err := execute(t, fs, runner, "-t", "work/template", "--no-git", "--open", "__NAME__/README.md", "Widget")
	require.NoError(t, err)

	assert.Equal(t, []string{"open Widget/README.md"}, runner.commands)
}

func TestRootDryRun(t *testing.T) {
	fs := newTemplateFS(t)
	runner := &stubRunner{}

	stdout, stderr, err := execute(t, fs, runner, "-t", "work/template", "--dry-run", "Widget")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Dry-run complete. No files written.")
	assert.Contains(t, stderr, "[FILE] work/Widget/Widget/README.md")
	exists, err := afero.Exists(fs, "work/Widget")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, runner.commands)
}

func TestRootArity(t *testing.T) {
	for _, args := range [][]string{{}, {"a", "b", "c"}} {
		stdout, stderr, err := execute(t, afero.NewMemMapFs(), &stubRunner{}, args...)
		require.Error(t, err)
		assert.Contains(t, stdout+stderr, "Usage:")
	}
}

func TestRootDestinationExists(t *testing.T) {
	fs := newTemplateFS(t)
	require.NoError(t, fs.MkdirAll("work/Widget", 0o755))

	_, _, err := execute(t, fs, &stubRunner{}, "-t", "work/template", "Widget")
	require.Error(t, err)
	assert.True(t, errors.Is(err, stamp.ErrDestinationExists))

	var buf bytes.Buffer
	printError(&buf, err)
	assert.Contains(t, buf.String(), "** destination exists")
}

func TestRootCommandFailure(t *testing.T) {
	fs := newTemplateFS(t)
	runner := &stubRunner{exit: map[string]stamp.Result{
		"git init": {ExitCode: 1, Stdout: []byte("out text"), Stderr: []byte("permission denied")},
	}}

	_, _, err := execute(t, fs, runner, "-t", "work/template", "Widget")
	require.Error(t, err)

	var buf bytes.Buffer
	printError(&buf, err)
	out := buf.String()
	assert.Contains(t, out, "** creating repo failed: git init (exit status 1)")
	assert.Contains(t, out, "out text")
	assert.Contains(t, out, "permission denied")
}

func TestRootReadsUserConfig(t *testing.T) {
	home := isolateUserConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "stamp"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "stamp", "config.yaml"), []byte("git:\n  enabled: false\n"), 0o644))

	fs := newTemplateFS(t)
	runner := &stubRunner{}
	_, _, err := executeWithUserConfig(t, fs, runner, "-t", "work/template", "Widget")
	require.NoError(t, err)

	assert.Empty(t, runner.commands, "git is disabled by the user config")
}
