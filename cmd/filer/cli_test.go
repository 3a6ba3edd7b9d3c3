package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"filer/internal/config"
	"filer/internal/store"
	"filer/internal/taxonomy"
	"filer/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

// seed creates the standard hierarchy plus a pdf rule targeting 11.01.
func (e *cliTestEnv) seed(t *testing.T) {
	t.Helper()
	st, err := store.Open(e.cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	testsupport.SeedHierarchy(t, st)
	testsupport.MustCreateRule(t, st, taxonomy.Rule{Type: taxonomy.RuleExtension, Pattern: "pdf", TargetID: "11.01"})
}

func (e *cliTestEnv) file(t *testing.T, rel string) string {
	t.Helper()
	return testsupport.WriteFiles(t, e.baseDir, rel)[0]
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.DatabasePath())

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse an existing file without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, target); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestTaxonomyCommandsBuildHierarchy(t *testing.T) {
	env := setupCLITestEnv(t)
	steps := [][]string{
		{"taxonomy", "add-area", "30-39", "Projects"},
		{"taxonomy", "add-category", "31", "Clients"},
		{"taxonomy", "add-folder", "31.01", "Acme", "--keywords", "acme,contract"},
	}
	for _, args := range steps {
		if _, _, err := runCLI(t, args, env.configPath); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	out, _, err := runCLI(t, []string{"taxonomy"}, env.configPath)
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	requireContains(t, out, "30-39 Projects")
	requireContains(t, out, "31 Clients")
	requireContains(t, out, "31.01 Acme [acme, contract]")

	if _, _, err := runCLI(t, []string{"taxonomy", "add-folder", "32.01", "Orphan"}, env.configPath); err == nil {
		t.Fatal("expected add-folder to fail without its category")
	}
}

func TestRulesAddListAndMatch(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seed(t)

	out, _, err := runCLI(t, []string{"rules", "add", "--name", "Receipts", "--type", "keyword", "--pattern", "receipt", "--target", "11.02", "--priority", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("rules add: %v", err)
	}
	requireContains(t, out, "Created rule")

	if _, _, err := runCLI(t, []string{"rules", "add", "--type", "regex", "--pattern", "([a-z", "--target", "11.02"}, env.configPath); err == nil {
		t.Fatal("expected an invalid regex to be rejected")
	}

	out, _, err = runCLI(t, []string{"rules", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("rules list: %v", err)
	}
	var rules []ruleJSON
	decodeJSON(t, out, &rules)
	if len(rules) != 2 {
		t.Fatalf("expected two rules, got %+v", rules)
	}

	pdf := env.file(t, "inbox/statement.pdf")
	receipt := env.file(t, "inbox/receipt-march.txt")
	out, _, err = runCLI(t, []string{"match", "--json", pdf, receipt, filepath.Join(env.baseDir, "missing.pdf")}, env.configPath)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	var results []matchJSON
	decodeJSON(t, out, &results)
	if len(results) != 3 {
		t.Fatalf("expected three results, got %+v", results)
	}
	byFile := map[string]matchJSON{}
	for _, r := range results {
		byFile[filepath.Base(r.File)] = r
	}
	if got := byFile["missing.pdf"]; got.Error == "" {
		t.Fatalf("expected an error for the missing file, got %+v", got)
	}
	if got := byFile["statement.pdf"]; len(got.Suggestions) == 0 || got.Suggestions[0].Folder != "11.01" || got.Suggestions[0].Confidence != "high" {
		t.Fatalf("unexpected pdf suggestions %+v", got)
	}
	if got := byFile["receipt-march.txt"]; len(got.Suggestions) == 0 || got.Suggestions[0].Folder != "11.02" {
		t.Fatalf("unexpected receipt suggestions %+v", got)
	}
}

func TestMoveHistoryAndRollback(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seed(t)
	source := env.file(t, "inbox/statement.pdf")

	out, _, err := runCLI(t, []string{"move", "--to", "11.01", "--json", source}, env.configPath)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	var batch batchJSON
	decodeJSON(t, out, &batch)
	if batch.Succeeded != 1 || len(batch.Items) != 1 || batch.Items[0].RecordID == 0 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	dest := batch.Items[0].Destination
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected file at %s: %v", dest, err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, stat err=%v", err)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "statement.pdf")
	requireContains(t, out, "moved")

	out, _, err = runCLI(t, []string{"rollback", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	requireContains(t, out, "1 succeeded")
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("expected file restored to %s: %v", source, err)
	}

	if _, _, err := runCLI(t, []string{"rollback", "1"}, env.configPath); err == nil {
		t.Fatal("expected a second rollback of the same record to fail")
	}
	if _, _, err := runCLI(t, []string{"rollback", "abc"}, env.configPath); err == nil {
		t.Fatal("expected an invalid id to be rejected")
	}

	out, _, err = runCLI(t, []string{"history", "--status", "undone", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var entries []map[string]any
	decodeJSON(t, out, &entries)
	if len(entries) != 1 || entries[0]["status"] != "undone" {
		t.Fatalf("unexpected history %+v", entries)
	}
}

func TestMoveAutoAndPreview(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seed(t)
	pdf := env.file(t, "inbox/statement.pdf")
	unknown := env.file(t, "inbox/zzqx.bin")

	out, _, err := runCLI(t, []string{"preview", "--auto", "--json", pdf, unknown}, env.configPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	var previews []map[string]any
	decodeJSON(t, out, &previews)
	if len(previews) != 2 || previews[0]["folder"] != "11.01" || previews[0]["action"] != "move" {
		t.Fatalf("unexpected previews %+v", previews)
	}
	if _, err := os.Stat(pdf); err != nil {
		t.Fatalf("preview must not move files: %v", err)
	}

	out, _, err = runCLI(t, []string{"move", "--auto", pdf, unknown}, env.configPath)
	if err != nil {
		t.Fatalf("move --auto: %v", err)
	}
	requireContains(t, out, "zzqx.bin: no confident suggestion")
	requireContains(t, out, "1 succeeded, 1 skipped, 0 failed")

	out, _, err = runCLI(t, []string{"rules", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("rules list: %v", err)
	}
	var rules []ruleJSON
	decodeJSON(t, out, &rules)
	if len(rules) != 1 || rules[0].MatchCount != 1 {
		t.Fatalf("expected the pdf rule to count one match, got %+v", rules)
	}

	if _, _, err := runCLI(t, []string{"move", unknown}, env.configPath); err == nil {
		t.Fatal("expected move without --to or --auto to fail")
	}
}

func TestWatchAddScanAndActivity(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seed(t)
	env.file(t, "inbox/invoice.pdf")
	env.file(t, "inbox/zzqx.bin")
	inbox := filepath.Join(env.baseDir, "inbox")

	out, _, err := runCLI(t, []string{"watch", "add", inbox, "--auto-organize", "--threshold", "high"}, env.configPath)
	if err != nil {
		t.Fatalf("watch add: %v", err)
	}
	requireContains(t, out, "(id 1)")

	if _, _, err := runCLI(t, []string{"watch", "add", filepath.Join(env.baseDir, "nope")}, env.configPath); err == nil {
		t.Fatal("expected watch add to reject a missing directory")
	}

	out, _, err = runCLI(t, []string{"watch", "scan", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("watch scan: %v", err)
	}
	requireContains(t, out, "Processed 2 files: 1 organized, 1 queued")

	out, _, err = runCLI(t, []string{"watch", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("watch list: %v", err)
	}
	var folders []watchedFolderJSON
	decodeJSON(t, out, &folders)
	if len(folders) != 1 || folders[0].FilesOrganized != 1 || folders[0].LastCheckedAt == nil {
		t.Fatalf("unexpected watched folders %+v", folders)
	}

	out, _, err = runCLI(t, []string{"watch", "activity", "--folder", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("watch activity: %v", err)
	}
	requireContains(t, out, "auto_organized")
	requireContains(t, out, "queued")

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon: not running")
	requireContains(t, out, inbox)
}

func TestRulesSuggest(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFiles(t, dir, "a-invoice.pdf", "b-invoice.pdf", "c-invoice.pdf")
	out, _, err := runCLI(t, []string{"rules", "suggest", dir}, "")
	if err != nil {
		t.Fatalf("rules suggest: %v", err)
	}
	requireContains(t, out, "pdf")
	requireContains(t, out, "invoice")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestDoctorReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Storage root")
	requireContains(t, out, "Database")

	missing := filepath.Join(env.baseDir, "gone")
	if err := os.MkdirAll(missing, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, _, err := runCLI(t, []string{"watch", "add", missing}, env.configPath); err != nil {
		t.Fatalf("watch add: %v", err)
	}
	if err := os.Remove(missing); err != nil {
		t.Fatalf("remove: %v", err)
	}
	out, _, err = runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail for a missing watch folder")
	}
	requireContains(t, out, "FAIL")
}

func TestStopWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestLogsShowsTail(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "filer.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "INFO one component=watcher\nINFO two component=organizer\nINFO three component=watcher\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err := runCLI(t, []string{"logs", "--component", "watcher", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) != "INFO three component=watcher" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
