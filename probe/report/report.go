// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

// Package report writes the summary of an experiment run, and names
// experiment directories, with text templates.
package report

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
)

// DefaultDirTemplate names an experiment directory after its load parameters
const DefaultDirTemplate = `{{ .Mbps }}_{{ .Duration }}_{{ .PacketLength }}_{{ .Description }}`

// DefaultTemplate is the report used when no template file is given
const DefaultTemplate = `{{ .Name | upper }}
{{ repeat (len .Name) "=" }}
{{- with .Description }}
{{ . }}
{{- end }}

Run ID:    {{ .ID }}
Directory: {{ .Dir }}
Started:   {{ date "2006-01-02 15:04:05" .Start }}
Ended:     {{ date "2006-01-02 15:04:05" .End }}
{{- if .Deploy }}

Deployment
  {{ date "2006-01-02 15:04:05" .Deploy.Start }} -> {{ date "2006-01-02 15:04:05" .Deploy.End }} ({{ .Deploy.Seconds | printf "%.1f" }}s, {{ .Deploy.Attempts }} attempt{{ if gt .Deploy.Attempts 1 }}s{{ end }})
{{- end }}

Collections
{{- range .Collections }}
  {{ .Mode | printf "%-12s" }} {{ .State | printf "%-8s" }} {{ .Samples }} samples, {{ .Entities }} entities, {{ .Polls }} polls ({{ .Failures }} failed){{ with .Chart }} -> {{ . }}{{ end }}
{{- with .Error }}
    error: {{ . }}
{{- end }}
{{- else }}
  none
{{- end }}
{{- if .Energy }}

Energy per entity
{{- range .Energy }}
  {{ .Name | printf "%-32s" }} {{ .Joules | printf "%10.2f" }} J{{ if .Estimated }} (estimated){{ end }}  [{{ .Entity | trunc 12 }}]
{{- end }}
{{- end }}
{{- if .HostEnergy }}

Host energy
{{- range .HostEnergy }}
  {{ .Name | printf "%-32s" }} {{ .Joules | printf "%10.2f" }} J{{ if .Estimated }} (estimated){{ end }}
{{- end }}
{{- end }}
{{- if .Sessions }}

Load sessions
{{- range .Sessions }}
  {{ .Role | printf "%-6s" }} {{ .Pod | default "?" }}{{ with .LogFile }} -> {{ . }}{{ end }}{{ with .Error }} FAILED: {{ . }}{{ end }}
{{- end }}
{{- end }}
`

//////////////////// CONTENT TYPES ////////////////////

// Content is the data a report template is applied to
type Content struct {
	Name        string
	Description string
	ID          string
	Dir         string
	Start       time.Time
	End         time.Time

	Deploy      *Deploy
	Collections []Collection
	Energy      []Energy
	HostEnergy  []Energy
	Sessions    []Session
}

// Deploy summarizes the deployment phase
type Deploy struct {
	Start    time.Time
	End      time.Time
	Seconds  float64
	Attempts int
}

// Collection summarizes one collection run
type Collection struct {
	Mode     string
	State    string
	Samples  int
	Entities int
	Polls    int64
	Failures int64
	Chart    string
	Error    string
}

// Energy of one entity
type Energy struct {
	Entity    string
	Name      string
	Joules    float64
	Estimated bool
}

// Session summarizes one load session
type Session struct {
	Role    string
	Pod     string
	LogFile string
	Error   string
}

//////////////////// WRITER ////////////////////

// Writer applies a template to a Content and writes the result
type Writer struct {
	// Loaded template to use for writing the report
	template *template.Template
}

// NewWriter returns a Writer using DefaultTemplate
func NewWriter() *Writer {
	tmpl := template.Must(template.New("report").Funcs(sprig.TxtFuncMap()).Parse(DefaultTemplate))
	return &Writer{template: tmpl}
}

// LoadTemplate replaces the template with the one in file
func (w *Writer) LoadTemplate(templateFilePath string) error {
	tmpl := template.New(path.Base(templateFilePath)) // Create new empty template
	tmpl = tmpl.Funcs(sprig.TxtFuncMap())             // Add sprig functions
	tmpl, err := tmpl.ParseFiles(templateFilePath)    // Parse the template file
	if err != nil {
		return errors.Wrap(err, "Error while loading the report template from file")
	}

	w.template = tmpl
	return nil
}

// Render returns the report of content
func (w *Writer) Render(content Content) (string, error) {
	var buf bytes.Buffer
	if err := w.template.Execute(&buf, content); err != nil {
		return "", errors.Wrap(err, "Error while applying the report template to the data")
	}
	return buf.String(), nil
}

// Write writes the report of content at filePath
func (w *Writer) Write(filePath string, content Content) error {
	logger := logging.Logger()

	text, err := w.Render(content)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, []byte(text), 0644); err != nil {
		return errors.Wrap(err, "Error while writing the report")
	}
	logger.Infof("Report saved at %s", filePath)
	return nil
}

//////////////////// DIRECTORY NAMES ////////////////////

// DirName applies the directory name template to data. The result must be a
// single relative path element.
func DirName(dirTemplate string, data interface{}) (string, error) {
	if dirTemplate == "" {
		dirTemplate = DefaultDirTemplate
	}

	tmpl, err := template.New("dir").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(dirTemplate)
	if err != nil {
		return "", errors.Wrap(err, "Invalid experiment directory template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "Error while applying the experiment directory template")
	}

	name := strings.TrimSpace(buf.String())
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) {
		return "", errors.Errorf("Invalid experiment directory name %q", name)
	}
	return name, nil
}
