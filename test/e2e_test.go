package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/secwatch/accesswatch/pkg/config"
	"github.com/secwatch/accesswatch/pkg/engine"
	"github.com/secwatch/accesswatch/pkg/loader"
	"github.com/secwatch/accesswatch/pkg/output"
	"github.com/secwatch/accesswatch/pkg/webhook"
)

// fixture writes a config and export files into one temp dir and returns
// the config path.
func fixture(t *testing.T, configYAML string, exports map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for name, content := range exports {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("writing export %s: %v", name, err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	configYAML = strings.ReplaceAll(configYAML, "$DIR", dir)
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath
}

// runPipeline drives the full load/aggregate/evaluate path the audit
// command uses.
func runPipeline(t *testing.T, configPath string) (*config.Config, *engine.Result) {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	files, err := loader.ExpandGlobs(cfg.Sources)
	if err != nil {
		t.Fatalf("ExpandGlobs() error = %v", err)
	}

	batch, err := loader.New(loader.WithLocation(cfg.Location())).Load(ctx, files)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	result, err := eng.Run(batch.Entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	result.Excluded += len(batch.Malformed)
	return cfg, result
}

const auditConfig = `
sources:
  - $DIR/*.csv
timezone: UTC
max_distinct_ips_per_day: 3
max_records_per_day: 100
reason_blacklist:
  - test
  - 테스트
allowed_ip_prefixes:
  - "10."
business_hours:
  start: "09:00"
  end: "18:00"
holidays:
  - 2026-07-17
burst_window: 1h
max_actions_per_window: 20
`

func TestE2E_MonthlyAudit(t *testing.T) {
	var export strings.Builder
	export.WriteString("actor_id,timestamp,action,ip,reason,record_count,category,detail\n")

	// E100: bulk download far past the daily volume threshold.
	export.WriteString("E100,2026-07-15 10:00:00,DOWNLOAD,10.0.0.1,payroll reconciliation,450,GENERAL,\n")
	// E200: download with a blacklisted reason.
	export.WriteString("E200,2026-07-15 11:00:00,DOWNLOAD,10.0.0.2,테스트 목적,20,GENERAL,\n")
	// E300: logins from four distinct addresses in one day.
	for i := 1; i <= 4; i++ {
		export.WriteString(fmt.Sprintf("E300,2026-07-15 12:0%d:00,VIEW,10.0.%d.9,,1,GENERAL,\n", i, i))
	}
	// E400: HR-master access on a configured holiday.
	export.WriteString("E400,2026-07-17 10:00:00,VIEW,10.0.0.4,,1,인사마스터,record E555\n")
	// E500: login from outside the allowed range.
	export.WriteString("E500,2026-07-15 13:00:00,VIEW,203.0.113.9,,1,GENERAL,\n")
	// E600: clean activity.
	export.WriteString("E600,2026-07-15 14:00:00,DOWNLOAD,10.0.0.6,monthly compliance review,30,GENERAL,\n")
	// One malformed row.
	export.WriteString("E700,not-a-time,VIEW,10.0.0.7,,1,GENERAL,\n")

	configPath := fixture(t, auditConfig, map[string]string{"access_202607.csv": export.String()})
	_, result := runPipeline(t, configPath)

	if result.Excluded != 1 {
		t.Errorf("Excluded = %d, want 1", result.Excluded)
	}

	byRule := make(map[engine.RuleID]int)
	for _, f := range result.Findings {
		byRule[f.Rule]++
	}

	if byRule[engine.RuleVolumeSpike] != 1 {
		t.Errorf("volume-spike findings = %d, want 1", byRule[engine.RuleVolumeSpike])
	}
	if byRule[engine.RuleDownloadReason] != 1 {
		t.Errorf("download-reason findings = %d, want 1", byRule[engine.RuleDownloadReason])
	}
	if byRule[engine.RuleLoginPattern] != 2 {
		t.Errorf("login-pattern findings = %d, want 2 (distinct IPs + disallowed address)", byRule[engine.RuleLoginPattern])
	}
	if byRule[engine.RuleSensitiveAccess] != 1 {
		t.Errorf("sensitive-access findings = %d, want 1", byRule[engine.RuleSensitiveAccess])
	}

	// HIGH findings sort first.
	if len(result.Findings) == 0 || result.Findings[0].Severity != engine.SeverityHigh {
		t.Error("expected the report to lead with a HIGH finding")
	}
}

func TestE2E_IdenticalInputIdenticalReport(t *testing.T) {
	export := `actor_id,timestamp,action,ip,reason,record_count
E100,2026-07-15 10:00:00,DOWNLOAD,10.0.0.1,,450
`
	configPath := fixture(t, auditConfig, map[string]string{"export.csv": export})

	_, first := runPipeline(t, configPath)
	_, second := runPipeline(t, configPath)

	a, err := json.Marshal(first.Findings)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(second.Findings)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two runs over identical input produced different findings")
	}
}

func TestE2E_ReportToWebhook(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	export := `actor_id,timestamp,action,ip,reason,record_count
E100,2026-07-15 10:00:00,DOWNLOAD,10.0.0.1,,450
`
	configPath := fixture(t, auditConfig, map[string]string{"export.csv": export})
	_, result := runPipeline(t, configPath)

	report := output.NewReport(result, output.Metadata{
		Period:     "202607",
		AnalyzedAt: time.Now(),
	})

	resp := webhook.NewClient().Send(context.Background(), report, webhook.SendOptions{URL: server.URL})
	if !resp.Success() {
		t.Fatalf("webhook failed: %v", resp.Error)
	}

	var decoded output.Report
	if err := json.Unmarshal(received, &decoded); err != nil {
		t.Fatalf("webhook payload is not a report: %v", err)
	}
	if decoded.Summary.TotalFindings != len(result.Findings) {
		t.Errorf("payload findings = %d, want %d", decoded.Summary.TotalFindings, len(result.Findings))
	}
	if decoded.Metadata.Period != "202607" {
		t.Errorf("payload period = %q, want 202607", decoded.Metadata.Period)
	}
}

func TestE2E_MultiFileBatch(t *testing.T) {
	july := `actor_id,timestamp,action,ip,reason,record_count
E100,2026-07-15 10:00:00,DOWNLOAD,10.0.0.1,quarterly audit,60
`
	// Same day, second export: volume accumulates across files.
	julyExtra := `actor_id,timestamp,action,ip,reason,record_count
E100,2026-07-15 16:00:00,SAVE,10.0.0.1,quarterly audit,60
`
	configPath := fixture(t, auditConfig, map[string]string{
		"a_202607.csv": july,
		"b_202607.csv": julyExtra,
	})

	_, result := runPipeline(t, configPath)

	found := false
	for _, f := range result.Findings {
		if f.Rule == engine.RuleVolumeSpike && f.ActorID == "E100" {
			found = true
			if f.Severity != engine.SeverityLow {
				t.Errorf("Severity = %s, want LOW for 120 against limit 100", f.Severity)
			}
		}
	}
	if !found {
		t.Error("volume accumulated across files should cross the threshold")
	}
}

func TestE2E_TextReportRendering(t *testing.T) {
	export := `actor_id,timestamp,action,ip,reason,record_count
E100,2026-07-15 10:00:00,DOWNLOAD,10.0.0.1,,450
`
	configPath := fixture(t, auditConfig, map[string]string{"export.csv": export})
	_, result := runPipeline(t, configPath)

	report := output.NewReport(result, output.Metadata{Period: "202607"})

	var buf bytes.Buffer
	formatter := output.NewTextFormatter(output.FormatOptions{})
	if err := formatter.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Period: 202607") {
		t.Error("report missing period header")
	}
	if !strings.Contains(out, "actor=E100") {
		t.Error("report missing the offending actor")
	}
}
