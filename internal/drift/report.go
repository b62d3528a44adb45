package drift

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// SaveJSON writes the metrics as indented JSON.
func (m *Metrics) SaveJSON(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal drift metrics: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write drift metrics: %w", err)
	}
	return nil
}

// LoadJSON reads a previously saved drift metrics file.
func LoadJSON(path string) (*Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drift metrics: %w", err)
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse drift metrics: %w", err)
	}
	return &m, nil
}

var reportTemplate = template.Must(template.New("drift").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Data Drift Report</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-top: 1rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: right; }
th { background: #f0f0f0; }
td.name { text-align: left; }
.drifted { background: #fde8e8; }
.summary { margin-top: 1rem; font-size: 1.1rem; }
.badge { padding: 0.2rem 0.6rem; border-radius: 4px; color: #fff; }
.badge.ok { background: #2f855a; }
.badge.alert { background: #c53030; }
</style>
</head>
<body>
<h1>Data Drift Report</h1>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}} &mdash;
reference {{.ReferenceSamples}} rows, current {{.CurrentSamples}} rows.</p>
<p class="summary">
Dataset drift score: <strong>{{printf "%.2f" .DriftShare}}</strong>
({{.DriftedColumns}} of {{len .Columns}} columns drifted)
{{if .ShouldRetrain}}<span class="badge alert">retrain recommended</span>
{{else if .DriftDetected}}<span class="badge alert">drift detected</span>
{{else}}<span class="badge ok">stable</span>{{end}}
</p>
<table>
<tr><th>Feature</th><th>KS statistic</th><th>KS p-value</th><th>PSI</th><th>Drifted</th></tr>
{{range .Columns}}<tr{{if .Drifted}} class="drifted"{{end}}>
<td class="name">{{.Column}}</td>
<td>{{printf "%.4f" .KSStatistic}}</td>
<td>{{printf "%.4g" .KSPValue}}</td>
<td>{{printf "%.4f" .PSI}}</td>
<td>{{if .Drifted}}yes{{else}}no{{end}}</td>
</tr>
{{end}}</table>
<p>Thresholds: KS alpha {{.Thresholds.KSAlpha}}, PSI {{.Thresholds.PSIThreshold}},
retrain share {{.Thresholds.RetrainShare}}.</p>
</body>
</html>
`))

// SaveHTML renders the human-readable report.
func (m *Metrics) SaveHTML(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create drift report: %w", err)
	}
	defer f.Close()
	if err := reportTemplate.Execute(f, m); err != nil {
		return fmt.Errorf("render drift report: %w", err)
	}
	return nil
}
