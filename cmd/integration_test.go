package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/edaloom-cli/internal/ai"
	"github.com/KaramelBytes/edaloom-cli/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const peopleCSV = "age,city,score\n25,NYC,1.5\n,LA,2.5\n35,,\n"

// resetFlags restores every flag to its default; cobra keeps parsed values
// and Changed state between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func execCmd(args ...string) (string, error) {
	resetFlags(rootCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// isolate points HOME and the output directory at temp dirs.
func isolate(t *testing.T) (home, outDir string) {
	t.Helper()
	home = t.TempDir()
	outDir = filepath.Join(home, "out")
	t.Setenv("HOME", home)
	t.Setenv("EDALOOM_OUTPUT_DIR", outDir)
	t.Setenv("EDALOOM_API_KEY", "")
	t.Setenv("EDALOOM_CHAT_API_KEY", "")
	return home, outDir
}

func writeInput(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return p
}

func insightsServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ai.InsightsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Dataset == "" {
			http.Error(w, "bad payload", http.StatusTeapot)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCLI_ExploreWritesArtifacts(t *testing.T) {
	home, outDir := isolate(t)
	srv := insightsServer(t, http.StatusOK, map[string]string{"insights": "Scores rise with age."})
	t.Setenv("EDALOOM_API_KEY", "test-key")
	t.Setenv("EDALOOM_INSIGHTS_URL", srv.URL)

	data := writeInput(t, home, "people.csv", peopleCSV)
	out := runCmd(t, "explore", data, "--target", "city")

	for _, want := range []string{
		"Dataset Preview",
		"Missing Values Handled: 3 → 0",
		"AI-Powered Insights",
		"Scores rise with age.",
		"Recommended Model: Classification (e.g., RandomForest, XGBoost)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, name := range []string{cleanedFileName, reportFileName, heatmapFileName} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	b, err := os.ReadFile(filepath.Join(outDir, cleanedFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "age,city,score\n") || strings.Contains(string(b), ",,") {
		t.Errorf("cleaned file = %q", b)
	}
}

func TestCLI_ExploreContinuesPastFailures(t *testing.T) {
	home, outDir := isolate(t)
	srv := insightsServer(t, http.StatusInternalServerError, map[string]string{"error": "bad request"})
	t.Setenv("EDALOOM_API_KEY", "test-key")
	t.Setenv("EDALOOM_INSIGHTS_URL", srv.URL)

	data := writeInput(t, home, "names.csv", "name,team\nann,red\nbob,\n")
	out := runCmd(t, "explore", data, "--target", "missing_col")

	if !strings.Contains(out, "⚠ "+report.NoNumericWarning) {
		t.Errorf("expected heatmap warning:\n%s", out)
	}
	if !strings.Contains(out, "Error 500: bad request") {
		t.Errorf("expected insights error text:\n%s", out)
	}
	if !strings.Contains(out, "✗ recommendation") {
		t.Errorf("expected recommendation failure:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(outDir, heatmapFileName)); !os.IsNotExist(err) {
		t.Errorf("heatmap should not be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, reportFileName)); err != nil {
		t.Errorf("report should still be written: %v", err)
	}
}

func TestCLI_ExploreWithoutKeySkipsInsights(t *testing.T) {
	home, _ := isolate(t)
	data := writeInput(t, home, "people.csv", peopleCSV)
	out := runCmd(t, "explore", data, "--preview", "0")
	if !strings.Contains(out, "Skipping insights") {
		t.Errorf("expected skipped insights:\n%s", out)
	}
	if strings.Contains(out, "Dataset Preview") {
		t.Errorf("preview should be disabled:\n%s", out)
	}
}

func TestCLI_CleanKeepsTabs(t *testing.T) {
	home, outDir := isolate(t)
	data := writeInput(t, home, "data.tsv", "a\tb\n1\tx\n\ty\n3\tx\n")
	out := runCmd(t, "clean", data)
	if !strings.Contains(out, "Missing Values Handled: 1 → 0") {
		t.Errorf("unexpected output:\n%s", out)
	}
	b, err := os.ReadFile(filepath.Join(outDir, "cleaned_dataset.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "a\tb\n1\tx\n2\ty\n3\tx\n" {
		t.Errorf("cleaned = %q", b)
	}
}

func TestCLI_CleanKeepsDetectedDelimiter(t *testing.T) {
	home, outDir := isolate(t)
	cases := []struct {
		input, body, output, want string
	}{
		{"semi.txt", "a;b\n1;x\n;x\n3;y\n", cleanedFileName, "a;b\n1;x\n2;x\n3;y\n"},
		{"tabs.csv", "a\tb\n1.50\tx\n\ty\n", "cleaned_dataset.tsv", "a\tb\n1.5\tx\n1.5\ty\n"},
	}
	for _, tc := range cases {
		runCmd(t, "clean", writeInput(t, home, tc.input, tc.body))
		b, err := os.ReadFile(filepath.Join(outDir, tc.output))
		if err != nil {
			t.Fatalf("%s: %v", tc.input, err)
		}
		if string(b) != tc.want {
			t.Errorf("%s: cleaned = %q, want %q", tc.input, b, tc.want)
		}
	}
}

func TestCLI_RecommendJSON(t *testing.T) {
	home, _ := isolate(t)
	data := writeInput(t, home, "people.csv", peopleCSV)

	out := runCmd(t, "recommend", data, "-t", "age", "--json")
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["family"] != "regression" || got["target"] != "age" {
		t.Errorf("recommendation = %v", got)
	}

	if _, err := execCmd("recommend", data); err == nil {
		t.Error("expected error without --target")
	}
}

func TestCLI_HeatmapAndProfile(t *testing.T) {
	home, outDir := isolate(t)
	data := writeInput(t, home, "people.csv", peopleCSV)

	out := runCmd(t, "heatmap", data)
	if !strings.Contains(out, "✓ Wrote heatmap") {
		t.Errorf("heatmap output:\n%s", out)
	}
	out = runCmd(t, "heatmap", data, "--text")
	if !strings.Contains(out, "1.00") {
		t.Errorf("heatmap text:\n%s", out)
	}

	md := filepath.Join(home, "summary.md")
	runCmd(t, "profile", data, "-o", md, "--html")
	if b, err := os.ReadFile(md); err != nil || !strings.Contains(string(b), "age") {
		t.Errorf("markdown summary: %v %q", err, b)
	}
	if _, err := os.Stat(filepath.Join(outDir, reportFileName)); err != nil {
		t.Errorf("report: %v", err)
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home, _ := isolate(t)
	cfgPath := filepath.Join(home, "edaloom.yaml")

	if out := runCmd(t, "--config", cfgPath, "config", "set", "api_key", "abcdefghij"); !strings.Contains(out, "✓ Saved api_key") {
		t.Errorf("config set output = %q", out)
	}
	runCmd(t, "--config", cfgPath, "config", "set", "max_sessions", "7")
	out := runCmd(t, "--config", cfgPath, "config", "show")
	if !strings.Contains(out, "api_key: abc****hij") || !strings.Contains(out, "max_sessions: 7") {
		t.Errorf("config show:\n%s", out)
	}
	if out := runCmd(t, "--config", cfgPath, "config", "path"); strings.TrimSpace(out) != cfgPath {
		t.Errorf("config path = %q", out)
	}
	if _, err := execCmd("--config", cfgPath, "config", "set", "max_sessions", "zero"); err == nil {
		t.Error("expected validation error")
	}
	if _, err := execCmd("--config", cfgPath, "config", "set", "nope", "1"); err == nil {
		t.Error("expected unknown key error")
	}
}

func TestCLI_PingReportsStatus(t *testing.T) {
	isolate(t)
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusOK, `{"model":"gpt-3.5-turbo","choices":[{"message":{"role":"assistant","content":"Fine."}}]}`, "✓ API key is working!"},
		{http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`, "✗ API key is NOT working! Status Code: 401"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		t.Setenv("EDALOOM_CHAT_API_KEY", "sk-test")
		t.Setenv("EDALOOM_CHAT_URL", srv.URL)
		out := runCmd(t, "ping")
		srv.Close()
		if !strings.Contains(out, tc.want) {
			t.Errorf("status %d: output missing %q:\n%s", tc.status, tc.want, out)
		}
		if tc.status != http.StatusOK && !strings.Contains(out, "Incorrect API key provided") {
			t.Errorf("expected response body in output:\n%s", out)
		}
	}
}
