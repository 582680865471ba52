package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// HTMLRenderer turns a completed report into the browser-viewable page served
// at /report/{job_id}.
type HTMLRenderer struct {
	AppName string
	tmpl    *template.Template
}

func NewHTMLRenderer(appName string) (*HTMLRenderer, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"upper":         strings.ToUpper,
		"severityColor": severityColor,
		"sourceLabel":   sourceLabel,
		"sourceColor":   sourceColor,
		"riskColor":     riskColor,
	}).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &HTMLRenderer{AppName: appName, tmpl: tmpl}, nil
}

type templateData struct {
	AppName string
	Report  *domain.Report
}

// Render implements domain.Renderer.
func (r *HTMLRenderer) Render(rep *domain.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, templateData{AppName: r.AppName, Report: rep}); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func severityColor(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "#ef4444"
	case domain.SeverityHigh:
		return "#f97316"
	case domain.SeverityMedium:
		return "#eab308"
	case domain.SeverityLow:
		return "#3b82f6"
	}
	return "#6b7280"
}

// AI findings are displayed as "Agent" in reports.
func sourceLabel(s string) string {
	switch s {
	case "ai", "groq_ai":
		return "Agent"
	}
	return s
}

func sourceColor(s string) string {
	switch s {
	case "ai", "groq_ai":
		return "#10b981"
	case "mythril":
		return "#8b5cf6"
	case "slither":
		return "#0ea5e9"
	}
	return "#6b7280"
}

func riskColor(level string) string {
	switch level {
	case "CRITICAL":
		return "#ef4444"
	case "HIGH":
		return "#f97316"
	case "MEDIUM":
		return "#eab308"
	}
	return "#22c55e"
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Security Audit Report — {{.Report.ProjectName}}</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: 'DM Sans', -apple-system, BlinkMacSystemFont, sans-serif; background: #fafbfc; color: #1a1a2e; line-height: 1.6; }
.container { max-width: 1000px; margin: 0 auto; padding: 3rem 2rem; }
.header { text-align: center; margin-bottom: 3rem; padding-bottom: 2rem; border-bottom: 1px solid #e5e7eb; }
.logo { font-size: 1.5rem; font-weight: 700; color: #4f46e5; margin-bottom: 0.5rem; }
.project-name { font-size: 2rem; font-weight: 700; }
.timestamp { color: #9ca3af; font-size: 0.9rem; }
.risk-banner { text-align: center; color: white; border-radius: 16px; padding: 1.5rem; margin-bottom: 2rem; font-size: 1.25rem; font-weight: 700; }
.summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(140px, 1fr)); gap: 1rem; margin-bottom: 2.5rem; }
.summary-tile { background: white; border-radius: 12px; padding: 1.25rem; text-align: center; box-shadow: 0 1px 3px rgba(0,0,0,0.06); }
.summary-tile .count { font-size: 2rem; font-weight: 700; }
.summary-tile .label { color: #6b7280; font-size: 0.85rem; text-transform: uppercase; }
.analyzers { margin-bottom: 2rem; text-align: center; }
.analyzer-badge, .severity-badge, .source-badge, .swc-badge { display: inline-block; color: white; border-radius: 100px; padding: 0.2rem 0.75rem; font-size: 0.75rem; font-weight: 600; margin-right: 0.4rem; }
.swc-badge { background: #475569; }
.finding-card { background: white; border-radius: 12px; border-left: 4px solid #6b7280; padding: 1.5rem; margin-bottom: 1rem; box-shadow: 0 1px 3px rgba(0,0,0,0.06); }
.finding-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 0.75rem; }
.finding-location { font-family: 'JetBrains Mono', monospace; font-size: 0.8rem; color: #6b7280; }
.finding-title { font-size: 1.1rem; margin-bottom: 0.5rem; }
.finding-description { color: #4b5563; }
.finding-recommendation { margin-top: 0.75rem; padding: 0.75rem 1rem; background: #f0fdf4; border-radius: 8px; font-size: 0.9rem; }
.no-findings { text-align: center; padding: 3rem; background: white; border-radius: 16px; }
.no-findings-icon { font-size: 3rem; color: #22c55e; }
.footer { margin-top: 3rem; padding-top: 2rem; border-top: 1px solid #e5e7eb; text-align: center; color: #9ca3af; font-size: 0.8rem; word-break: break-all; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <div class="logo">{{.AppName}}</div>
    <div class="project-name">{{.Report.ProjectName}}</div>
    <div class="timestamp">{{.Report.Timestamp.Format "2006-01-02 15:04:05 UTC"}}</div>
  </div>

  <div class="risk-banner" style="background: {{riskColor .Report.RiskLevel}};">
    Overall Risk: {{.Report.RiskLevel}}
  </div>

  <div class="summary-grid">
    <div class="summary-tile"><div class="count">{{.Report.Summary.TotalFindings}}</div><div class="label">Findings</div></div>
    <div class="summary-tile"><div class="count" style="color:#ef4444">{{.Report.Summary.Critical}}</div><div class="label">Critical</div></div>
    <div class="summary-tile"><div class="count" style="color:#f97316">{{.Report.Summary.High}}</div><div class="label">High</div></div>
    <div class="summary-tile"><div class="count" style="color:#eab308">{{.Report.Summary.Medium}}</div><div class="label">Medium</div></div>
    <div class="summary-tile"><div class="count">{{.Report.Summary.SolidityFiles}}</div><div class="label">Contracts</div></div>
  </div>

  <div class="analyzers">
    {{range .Report.Summary.AnalyzersUsed}}<span class="analyzer-badge" style="background: {{sourceColor .}};">{{sourceLabel .}}</span>{{end}}
  </div>

  {{if .Report.Findings}}
    {{range .Report.Findings}}
    <div class="finding-card" style="border-left-color: {{severityColor .Severity}};">
      <div class="finding-header">
        <div>
          <span class="severity-badge" style="background: {{severityColor .Severity}};">{{upper (printf "%s" .Severity)}}</span>
          <span class="source-badge" style="background: {{sourceColor (printf "%s" .Source)}};">{{sourceLabel (printf "%s" .Source)}}</span>
          {{if .SWCID}}<span class="swc-badge">{{.SWCID}}</span>{{end}}
        </div>
        <span class="finding-location">{{.FilePath}}{{if .LineNumber}}:{{.LineNumber}}{{end}}</span>
      </div>
      <h3 class="finding-title">{{.Title}}</h3>
      <p class="finding-description">{{.Description}}</p>
      {{if .Recommendation}}<div class="finding-recommendation"><strong>Recommendation:</strong> {{.Recommendation}}</div>{{end}}
    </div>
    {{end}}
  {{else}}
    <div class="no-findings">
      <div class="no-findings-icon">&#10003;</div>
      <h3>No Vulnerabilities Found</h3>
      <p>The analysis did not detect any security issues in your smart contracts.</p>
    </div>
  {{end}}

  {{if .Report.Signature}}
  <div class="footer">
    <div>Report signed (Ed25519)</div>
    <div>signature: {{.Report.Signature}}</div>
    <div>public key: {{.Report.PublicKey}}</div>
  </div>
  {{end}}
</div>
</body>
</html>
`
