package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"todokeep/internal/credentials"
)

// cliFixture runs the CLI repeatedly against one database
type cliFixture struct {
	t   *testing.T
	cfg *Config
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	return &cliFixture{
		t: t,
		cfg: &Config{
			ConfigPath: filepath.Join(dir, "config.yaml"), // missing: defaults apply
			DBPath:     filepath.Join(dir, "todokeep.db"),
			Keyring:    credentials.NewMockKeyring(),
		},
	}
}

// run executes the CLI and returns exit code, stdout, stderr
func (f *cliFixture) run(args ...string) (int, string, string) {
	f.t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr, f.cfg)
	return code, stdout.String(), stderr.String()
}

// runIn executes the CLI with the given stdin
func (f *cliFixture) runIn(stdin string, args ...string) (int, string, string) {
	f.t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewTodoKeep(&stdout, &stderr, f.cfg)
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))

	code := 0
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(&stderr, "Error:", err)
		code = 1
	}
	return code, stdout.String(), stderr.String()
}

// mustAdd adds a task and returns its ID parsed from the output
func (f *cliFixture) mustAdd(title string) string {
	f.t.Helper()
	code, out, errOut := f.run("add", title)
	if code != 0 {
		f.t.Fatalf("add %q failed: %s", title, errOut)
	}
	// Output shape: "Added <id>: <title>"
	fields := strings.Fields(out)
	if len(fields) < 2 {
		f.t.Fatalf("unexpected add output: %q", out)
	}
	return strings.TrimSuffix(fields[1], ":")
}

// TestAddAndList verifies the basic add/list cycle and newest-first order.
func TestAddAndList(t *testing.T) {
	f := newCLIFixture(t)

	f.mustAdd("Buy milk")
	f.mustAdd("Walk dog")

	code, out, _ := f.run("list")
	if code != 0 {
		t.Fatalf("list failed: %s", out)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 tasks, got %q", out)
	}
	// Newest first
	if !strings.Contains(lines[0], "Walk dog") || !strings.Contains(lines[1], "Buy milk") {
		t.Errorf("wrong order:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "[ ]") {
		t.Errorf("new task not rendered as incomplete: %q", lines[0])
	}
}

// TestAddEmptyTitle verifies a blank title is rejected with a helpful error.
func TestAddEmptyTitle(t *testing.T) {
	f := newCLIFixture(t)

	code, _, errOut := f.run("add", "   ")
	if code == 0 {
		t.Fatal("expected failure for blank title")
	}
	if !strings.Contains(errOut, "title") {
		t.Errorf("error does not mention the title: %q", errOut)
	}
}

// TestToggleAndFilter verifies toggling and the list filters.
func TestToggleAndFilter(t *testing.T) {
	f := newCLIFixture(t)

	milkID := f.mustAdd("Buy milk")
	f.mustAdd("Walk dog")

	code, out, errOut := f.run("toggle", milkID)
	if code != 0 {
		t.Fatalf("toggle failed: %s", errOut)
	}
	if !strings.HasPrefix(out, "[x]") {
		t.Errorf("toggle output not completed: %q", out)
	}

	_, out, _ = f.run("list", "--filter", "completed")
	if !strings.Contains(out, "Buy milk") || strings.Contains(out, "Walk dog") {
		t.Errorf("completed filter wrong:\n%s", out)
	}

	_, out, _ = f.run("list", "--filter", "active")
	if strings.Contains(out, "Buy milk") || !strings.Contains(out, "Walk dog") {
		t.Errorf("active filter wrong:\n%s", out)
	}
}

// TestToggleMissingTask verifies the not-found error carries a suggestion.
func TestToggleMissingTask(t *testing.T) {
	f := newCLIFixture(t)

	code, _, errOut := f.run("toggle", "no-such-id")
	if code == 0 {
		t.Fatal("expected failure")
	}
	if !strings.Contains(errOut, "not found") {
		t.Errorf("unexpected error output: %q", errOut)
	}
}

// TestDelete verifies deletion and the idempotent repeat.
func TestDelete(t *testing.T) {
	f := newCLIFixture(t)

	id := f.mustAdd("Buy milk")

	code, out, _ := f.run("delete", id)
	if code != 0 || !strings.Contains(out, "Deleted") {
		t.Fatalf("delete failed: %q", out)
	}

	code, out, _ = f.run("delete", id)
	if code != 0 {
		t.Fatal("repeat delete should not fail")
	}
	if !strings.Contains(out, "No task") {
		t.Errorf("repeat delete output: %q", out)
	}

	_, out, _ = f.run("list")
	if !strings.Contains(out, "No tasks") {
		t.Errorf("list after delete: %q", out)
	}
}

// TestBackupRestoreCycle runs the destructive recovery path end to end
// through the CLI: backup, wipe, restore with --yes.
func TestBackupRestoreCycle(t *testing.T) {
	f := newCLIFixture(t)

	milkID := f.mustAdd("Buy milk")
	f.mustAdd("Walk dog")
	if code, _, errOut := f.run("toggle", milkID); code != 0 {
		t.Fatalf("toggle failed: %s", errOut)
	}

	code, out, errOut := f.run("backup")
	if code != 0 {
		t.Fatalf("backup failed: %s", errOut)
	}
	if !strings.Contains(out, "Backed up 2 tasks") {
		t.Errorf("backup output: %q", out)
	}

	// Wipe the live collection
	_, listOut, _ := f.run("list")
	for _, line := range strings.Split(strings.TrimSpace(listOut), "\n") {
		line = strings.TrimPrefix(strings.TrimPrefix(line, "[ ]"), "[x]")
		fields := strings.Fields(line)
		if len(fields) >= 1 {
			f.run("delete", fields[0])
		}
	}
	if _, out, _ := f.run("list"); !strings.Contains(out, "No tasks") {
		t.Fatalf("collection not wiped: %q", out)
	}

	code, out, errOut = f.run("restore", "--yes")
	if code != 0 {
		t.Fatalf("restore failed: %s", errOut)
	}
	if !strings.Contains(out, "Restored 2 tasks") {
		t.Errorf("restore output: %q", out)
	}

	_, out, _ = f.run("list")
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "Walk dog") {
		t.Errorf("tasks not restored:\n%s", out)
	}
	if !strings.Contains(out, "[x]") {
		t.Errorf("completed flag lost in restore:\n%s", out)
	}
}

// TestRestoreDeclined verifies answering no leaves the collection alone.
func TestRestoreDeclined(t *testing.T) {
	f := newCLIFixture(t)

	f.mustAdd("Keep me")
	if code, _, errOut := f.run("backup"); code != 0 {
		t.Fatalf("backup failed: %s", errOut)
	}
	f.mustAdd("Also keep me")

	code, out, _ := f.runIn("n\n", "restore")
	if code != 0 {
		t.Fatalf("declined restore should exit cleanly: %q", out)
	}
	if !strings.Contains(out, "Restore cancelled") {
		t.Errorf("restore output: %q", out)
	}

	_, out, _ = f.run("list")
	if !strings.Contains(out, "Also keep me") {
		t.Errorf("declined restore mutated the collection:\n%s", out)
	}
}

// TestRestoreWithoutBackup verifies a helpful error when the slot is empty.
func TestRestoreWithoutBackup(t *testing.T) {
	f := newCLIFixture(t)

	code, _, errOut := f.run("restore", "--yes")
	if code == 0 {
		t.Fatal("expected failure without a backup")
	}
	if !strings.Contains(errOut, "backup") {
		t.Errorf("error output: %q", errOut)
	}
}

// newCLIDriveServer is a minimal Drive endpoint for CLI-level remote tests
func newCLIDriveServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	type remoteFile struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		ModifiedTime string `json:"modifiedTime"`
	}
	files := map[string]*remoteFile{}
	nextID := 0

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/drive/v3/files":
			nextID++
			id := fmt.Sprintf("file-%d", nextID)
			files[id] = &remoteFile{ID: id, Name: fmt.Sprintf("TodoBackup_%d.json", nextID), ModifiedTime: "2026-01-01T00:00:00Z"}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": files[id].Name, "modifiedTime": files[id].ModifiedTime})
		case r.Method == http.MethodGet && r.URL.Path == "/drive/v3/files":
			list := make([]*remoteFile, 0, len(files))
			for _, file := range files {
				list = append(list, file)
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"files": list})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// TestRemoteBackupAndListing verifies 'backup --remote' and 'backups'
// against a fake Drive endpoint, authenticating via the environment token.
func TestRemoteBackupAndListing(t *testing.T) {
	server := newCLIDriveServer(t, "env-token")
	defer server.Close()

	f := newCLIFixture(t)
	f.cfg.DriveBaseURL = server.URL
	t.Setenv(credentials.EnvToken, "env-token")

	f.mustAdd("Buy milk")

	code, out, errOut := f.run("backup", "--remote")
	if code != 0 {
		t.Fatalf("remote backup failed: %s", errOut)
	}
	if !strings.Contains(out, "Uploaded 1 tasks") {
		t.Errorf("upload output: %q", out)
	}

	code, out, errOut = f.run("backups")
	if code != 0 {
		t.Fatalf("backups failed: %s", errOut)
	}
	if !strings.Contains(out, "TodoBackup_") {
		t.Errorf("listing output: %q", out)
	}
}

// TestSignOut verifies the cached token is forgotten.
func TestSignOut(t *testing.T) {
	f := newCLIFixture(t)

	code, out, errOut := f.run("signout")
	if code != 0 {
		t.Fatalf("signout failed: %s", errOut)
	}
	if !strings.Contains(out, "Signed out") {
		t.Errorf("signout output: %q", out)
	}
}

// TestConfigInit verifies sample config creation and the overwrite guard.
func TestConfigInit(t *testing.T) {
	f := newCLIFixture(t)

	code, out, errOut := f.run("config", "init")
	if code != 0 {
		t.Fatalf("config init failed: %s", errOut)
	}
	if !strings.Contains(out, "Wrote sample config") {
		t.Errorf("init output: %q", out)
	}

	if code, _, _ := f.run("config", "init"); code == 0 {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

// TestConfigTheme verifies the theme preference persists and bad values are
// rejected.
func TestConfigTheme(t *testing.T) {
	f := newCLIFixture(t)

	code, out, errOut := f.run("config", "theme", "dark")
	if code != 0 {
		t.Fatalf("config theme failed: %s", errOut)
	}
	if !strings.Contains(out, "dark") {
		t.Errorf("theme output: %q", out)
	}

	if code, _, _ := f.run("config", "theme", "sepia"); code == 0 {
		t.Fatal("expected rejection of unknown theme")
	}
}
