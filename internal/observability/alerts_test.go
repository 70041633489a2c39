package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`koperasi_[a-z_]+`)

func TestLedgerAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml"))
	require.NoError(t, err)

	var rules ruleFile
	require.NoError(t, yaml.Unmarshal(data, &rules))
	require.Len(t, rules.Groups, 1)
	require.Equal(t, "ledger", rules.Groups[0].Name)

	want := map[string]struct {
		severity string
		anchor   string
		metric   string
	}{
		"LedgerIntegrityViolation": {"critical", "integrity-violation", "koperasi_ledger_integrity_violations_total"},
		"LedgerSyncFailures":       {"warning", "sync-failures", "koperasi_ledger_sync_total"},
		"HighErrorRate":            {"critical", "high-error-rate", "koperasi_http_requests_total"},
		"HighLatency":              {"warning", "high-latency", "koperasi_http_request_duration_seconds_bucket"},
		"GLIntegrityJobFailing":    {"warning", "integrity-job-failing", "koperasi_jobs_runs_total"},
		"GLIntegrityJobStale":      {"warning", "integrity-job-failing", "koperasi_jobs_last_success_timestamp_seconds"},
	}

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-ledger.md"))
	require.NoError(t, err)

	got := rules.Groups[0].Rules
	require.Len(t, got, len(want))
	for _, rule := range got {
		exp, ok := want[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, exp.severity, rule.Labels["severity"], rule.Alert)
		require.Equal(t, "docs/runbook-ledger.md#"+exp.anchor, rule.Annotations["runbook"], rule.Alert)
		require.Contains(t, string(runbook), "## "+exp.anchor, rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
		require.Contains(t, metricName.FindAllString(rule.Expr, -1), exp.metric, rule.Alert)
	}
}
