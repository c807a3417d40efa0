package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxhydrate"
)

const testPage = `<!doctype html><html><body>
<fluent-nav data-hydrate-strategy="immediate" data-hydrate-priority="critical"></fluent-nav>
<fluent-card></fluent-card>
<fluent-card></fluent-card>
<fluent-broken data-hydrate-strategy="custom" data-hydrate-priority="low"></fluent-broken>
<div></div>
</body></html>`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func useConfig(t *testing.T, body string) {
	t.Helper()
	configPath = writeFile(t, t.TempDir(), "hxhydrate.yaml", body)
	logLevel = "error"
	t.Cleanup(func() {
		configPath = ""
		logLevel = ""
	})
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	useConfig(t, "snapshot:\n  key: test-key\n")
	page := writeFile(t, dir, "page.html", testPage)
	snapPath := filepath.Join(dir, "snap.txt")

	out, err := execute(t, newRunCommand(), page, "--wait", "2s", "--snapshot", snapPath)
	require.Error(t, err, "the custom strategy always fails")
	assert.Contains(t, err.Error(), "1 components failed")

	assert.Contains(t, out, "fluent-nav")
	assert.Contains(t, out, "fluent-card")
	assert.Contains(t, out, "fluent-broken")
	assert.Contains(t, out, "Total: 3 tags")
	assert.Contains(t, out, "snapshot written")

	out, err = execute(t, newDecodeCommand(), snapPath)
	require.NoError(t, err)
	assert.Contains(t, out, "fluent-card")
	assert.Contains(t, out, string(hxhydrate.StatusHydrated))
}

func TestRunCommandTagFilter(t *testing.T) {
	useConfig(t, "")
	page := writeFile(t, t.TempDir(), "page.html", testPage)

	out, err := execute(t, newRunCommand(), page, "--tag", "fluent-nav,fluent-card", "--wait", "2s")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 2 tags")
	assert.NotContains(t, out, "fluent-broken")
}

func TestDecodeJSON(t *testing.T) {
	dir := t.TempDir()
	useConfig(t, "snapshot:\n  key: k\n  sensitive: true\n")
	page := writeFile(t, dir, "page.html", `<body><fluent-a data-hydrate-strategy="immediate"></fluent-a></body>`)
	snapPath := filepath.Join(dir, "snap.txt")

	_, err := execute(t, newRunCommand(), page, "--snapshot", snapPath)
	require.NoError(t, err)

	out, err := execute(t, newDecodeCommand(), snapPath, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"tag": "fluent-a"`)
	assert.Contains(t, out, `"status": "hydrated"`)
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	dir := t.TempDir()
	useConfig(t, "snapshot:\n  key: one\n")
	page := writeFile(t, dir, "page.html", `<body><fluent-a data-hydrate-strategy="immediate"></fluent-a></body>`)
	snapPath := filepath.Join(dir, "snap.txt")
	_, err := execute(t, newRunCommand(), page, "--snapshot", snapPath)
	require.NoError(t, err)

	useConfig(t, "snapshot:\n  key: two\n")
	_, err = execute(t, newDecodeCommand(), snapPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, hxhydrate.ErrSnapshotSignature)
}

func TestRenderStates(t *testing.T) {
	var buf bytes.Buffer
	renderStates(&buf, []hxhydrate.ComponentState{
		{Tag: "fluent-a", Strategy: hxhydrate.StrategyLazy, Priority: hxhydrate.PriorityHigh, Status: hxhydrate.StatusError, RetryCount: 3, MaxRetries: 3, Error: "boom"},
	})
	out := buf.String()
	assert.Contains(t, out, "fluent-a")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "boom")
	assert.True(t, strings.Contains(out, "Total: 1 tags"))
	assert.NotContains(t, out, "TOTAL")
}

func TestSimulationApply(t *testing.T) {
	b, err := loadPage(writeFile(t, t.TempDir(), "p.html", `<body><fluent-a class="top"></fluent-a><fluent-a></fluent-a></body>`), simulation{
		visible: []string{".top"},
		media:   []string{"(min-width: 768px)", "(prefers-reduced-motion: reduce)=false"},
		network: "3g",
		memory:  4,
		noIdle:  true,
	})
	require.NoError(t, err)

	els, err := b.Document.QueryAll("fluent-a")
	require.NoError(t, err)
	require.Len(t, els, 2)
	assert.True(t, b.Viewport.IsVisible(els[0]))
	assert.False(t, b.Viewport.IsVisible(els[1]))
	assert.True(t, b.Media.Matches("(min-width: 768px)"))
	assert.False(t, b.Media.Matches("(prefers-reduced-motion: reduce)"))
	effective, _, ok := b.Network.Info()
	assert.True(t, ok)
	assert.Equal(t, "3g", effective)
	assert.False(t, b.Idle.Enabled())

	_, err = loadPage(writeFile(t, t.TempDir(), "p.html", `<body></body>`), simulation{media: []string{"(x)=maybe"}})
	assert.Error(t, err)
}
