// Package templates provides the notification email bodies
package templates

import (
	"bytes"
	"html/template"
)

// NewLeadProps is the data rendered into the new-lead notification.
type NewLeadProps struct {
	WorkspaceName string
	LeadID        string
	Email         string
	Name          string
	Source        string
	Medium        string
	Campaign      string
	CapturedVia   string
	CapturedAt    string
}

// User-supplied values are escaped by html/template.
var newLeadTemplate = template.Must(template.New("newLead").Parse(`<!doctype html>
<html lang="en">
  <head><meta http-equiv="Content-Type" content="text/html; charset=UTF-8"><title>New lead</title></head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.3; background-color: #f4f5f6; margin: 0; padding: 16px;">
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" style="background-color: #ffffff; border-radius: 8px; padding: 24px; width: 100%; max-width: 600px;">
      <tr><td>
        <h2 style="margin-top: 0;">New lead in {{.WorkspaceName}}</h2>
        <p><strong>{{if .Name}}{{.Name}}{{else}}Someone{{end}}</strong> ({{.Email}}) just signed up{{if .CapturedVia}} via {{.CapturedVia}}{{end}}.</p>
        <table role="presentation" cellpadding="4" style="font-size: 14px;">
          {{if .Source}}<tr><td>Source</td><td>{{.Source}}</td></tr>{{end}}
          {{if .Medium}}<tr><td>Medium</td><td>{{.Medium}}</td></tr>{{end}}
          {{if .Campaign}}<tr><td>Campaign</td><td>{{.Campaign}}</td></tr>{{end}}
          <tr><td>Captured</td><td>{{.CapturedAt}}</td></tr>
          <tr><td>Lead ID</td><td>{{.LeadID}}</td></tr>
        </table>
      </td></tr>
    </table>
  </body>
</html>`))

// RenderNewLead renders the notification body.
func RenderNewLead(props NewLeadProps) (string, error) {
	var buf bytes.Buffer
	if err := newLeadTemplate.Execute(&buf, props); err != nil {
		return "", err
	}
	return buf.String(), nil
}
