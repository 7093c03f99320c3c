package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/buemura/scanhub/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJob(t *testing.T) *types.ScanJob {
	t.Helper()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)
	results, err := types.NewScanResults("https://example.com", types.ScanTypeQuick, end, []types.Finding{
		{Type: "Insecure Cookies", Severity: types.SeverityLow, Description: "Cookies without secure flag", Location: "https://example.com/login"},
		{Type: "SQLi", Severity: types.SeverityCritical, Description: "SQL injection vulnerability", Location: "https://example.com/search"},
	})
	require.NoError(t, err)
	return &types.ScanJob{
		ID:        7,
		TargetURL: "https://example.com",
		ScanType:  types.ScanTypeQuick,
		Status:    types.StatusCompleted,
		StartTime: start,
		EndTime:   &end,
		Results:   results,
	}
}

func pendingJob() *types.ScanJob {
	return &types.ScanJob{ID: 8, TargetURL: "https://example.org", ScanType: types.ScanTypeDeep, Status: types.StatusPending, StartTime: time.Now()}
}

func TestGetFormatter(t *testing.T) {
	for format, want := range map[string]Formatter{
		"table":    &TableFormatter{},
		"json":     &JSONFormatter{},
		"markdown": &MarkdownFormatter{},
	} {
		f, err := GetFormatter(format)
		require.NoError(t, err)
		assert.IsType(t, want, f)
	}
}

func TestGetFormatter_Unknown(t *testing.T) {
	_, err := GetFormatter("xml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}

func TestTableFormatter_Scan(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	require.NoError(t, f.FormatScan(&buf, sampleJob(t), []types.Vulnerability{{ID: 1}, {ID: 2}}))

	output := buf.String()
	assert.Contains(t, output, "Scan #7")
	assert.Contains(t, output, "https://example.com/search")
	assert.Contains(t, output, "2 findings (1 critical, 0 high, 0 medium, 1 low, 0 info)")
	assert.Contains(t, output, "Stored vulnerability records: 2")
	// Most severe first.
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("SQLi")), bytes.Index(buf.Bytes(), []byte("Insecure Cookies")))
}

func TestTableFormatter_PendingScan(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	require.NoError(t, f.FormatScan(&buf, pendingJob(), nil))

	output := buf.String()
	assert.Contains(t, output, "pending")
	assert.NotContains(t, output, "Summary")
	assert.NotContains(t, output, "Stored vulnerability records")
}

func TestTableFormatter_List(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	require.NoError(t, f.FormatList(&buf, []*types.ScanJob{sampleJob(t), pendingJob()}))

	output := buf.String()
	assert.Contains(t, output, "https://example.com")
	assert.Contains(t, output, "https://example.org")
	assert.Contains(t, output, "completed")
}

func TestTableFormatter_EmptyList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).FormatList(&buf, nil))
	assert.Contains(t, buf.String(), "No scans")
}

func TestJSONFormatter_Scan(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}
	require.NoError(t, f.FormatScan(&buf, sampleJob(t), nil))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 7, decoded["id"])
	assert.Equal(t, "completed", decoded["status"])
	assert.NotContains(t, decoded, "vulnerabilities")

	buf.Reset()
	require.NoError(t, f.FormatScan(&buf, sampleJob(t), []types.Vulnerability{}))
	decoded = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []interface{}{}, decoded["vulnerabilities"])
}

func TestJSONFormatter_List(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}
	require.NoError(t, f.FormatList(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())

	buf.Reset()
	require.NoError(t, f.FormatList(&buf, []*types.ScanJob{sampleJob(t)}))
	var decoded []types.ScanJob
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 2, decoded[0].Results.Summary.TotalVulnerabilities)
}

func TestMarkdownFormatter_Scan(t *testing.T) {
	var buf bytes.Buffer
	f := &MarkdownFormatter{}
	require.NoError(t, f.FormatScan(&buf, sampleJob(t), nil))

	output := buf.String()
	assert.Contains(t, output, "## Scan #7: https://example.com")
	assert.Contains(t, output, "| Severity | Type | Location | Description |")
	assert.Contains(t, output, "**critical**")
	assert.Contains(t, output, "**Summary:** 2 findings")
}

func TestMarkdownFormatter_NoFindings(t *testing.T) {
	job := sampleJob(t)
	results, err := types.NewScanResults(job.TargetURL, job.ScanType, *job.EndTime, nil)
	require.NoError(t, err)
	job.Results = results

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownFormatter{}).FormatScan(&buf, job, nil))
	assert.Contains(t, buf.String(), "No findings")
}

func TestMarkdownFormatter_EscapesPipes(t *testing.T) {
	job := pendingJob()
	job.TargetURL = "https://example.com/a|b"

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownFormatter{}).FormatList(&buf, []*types.ScanJob{job}))
	assert.Contains(t, buf.String(), `a\|b`)
}
