package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gcload/internal/schema"
)

// Job kinds.
const (
	KindTimeSeries = "timeseries"
	KindRecords    = "records"
	KindSheet      = "sheet"
	KindDelete     = "delete"
)

// Job describes one load: where the input comes from, which row steps run
// before shaping, how rows become target records, and how they are uploaded.
// Job files are YAML or JSON, chosen by extension.
//
// Example (trimmed):
//
//	name: processed_data
//	kind: sheet
//	template: processed_data
//	source: { path: Test-datasets/Sample_data.xlsx, sheet: Sheet1 }
//	steps:
//	  - kind: filter
//	    options: { field: measurement_value, op: ">", value: 50 }
//	record:
//	  code: "Patient_{patient_id}"
//	  items: true
//	  groups:
//	    - name: User_Information
//	      fields: [{ source: patient_id, type: int, required: true }]
type Job struct {
	Name     string        `json:"name" yaml:"name"`
	Kind     string        `json:"kind" yaml:"kind"`
	Template string        `json:"template" yaml:"template"`
	Source   Source        `json:"source" yaml:"source"`
	Schema   schema.Schema `json:"schema" yaml:"schema"`
	Steps    []Step        `json:"steps" yaml:"steps"`
	Record   RecordShape   `json:"record" yaml:"record"`
	Upload   Upload        `json:"upload" yaml:"upload"`
}

// Source identifies the input file.
type Source struct {
	Path string `json:"path" yaml:"path"`

	// Format is csv, json or xlsx. Empty means detect from the extension.
	Format string `json:"format" yaml:"format"`

	// Sheet names the spreadsheet sheet; empty selects the first sheet.
	Sheet string `json:"sheet" yaml:"sheet"`

	// HeaderMap renames source headers before any step runs.
	HeaderMap map[string]string `json:"header_map" yaml:"header_map"`
}

// Step is a single row-level transform applied before records are shaped.
type Step struct {
	// Kind selects the step: filter, derive, require, dedup.
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// RecordShape describes report-style grouped records.
type RecordShape struct {
	// Code is a template for the record code; {field} placeholders are
	// replaced with row values.
	Code string `json:"code" yaml:"code"`

	// Items wraps the batch as {"items": [...]}.
	Items bool `json:"items" yaml:"items"`

	// Groups become the nested objects under "data".
	Groups []Group `json:"groups" yaml:"groups"`
}

// Group is a named object under a record's data.
type Group struct {
	Name   string         `json:"name" yaml:"name"`
	Fields []schema.Field `json:"fields" yaml:"fields"`
}

// Upload holds the chunking parameters passed to the platform client.
type Upload struct {
	ChunkSize   int  `json:"chunk_size" yaml:"chunk_size"`
	MaxRetries  *int `json:"max_retries" yaml:"max_retries"`
	Parallelism int  `json:"parallelism" yaml:"parallelism"`
	Timer       bool `json:"timer" yaml:"timer"`
}

// Upload defaults.
const (
	DefaultChunkSize  = 1000
	DefaultMaxRetries = 3
)

// Retries returns the retry count per chunk. An unset count is
// DefaultMaxRetries; 0 disables retries.
func (u Upload) Retries() int {
	if u.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *u.MaxRetries
}

// ApplyDefaults fills unset upload parameters.
func (j *Job) ApplyDefaults() {
	if j.Upload.ChunkSize <= 0 {
		j.Upload.ChunkSize = DefaultChunkSize
	}
	if j.Upload.MaxRetries == nil {
		n := DefaultMaxRetries
		j.Upload.MaxRetries = &n
	}
	if j.Upload.Parallelism <= 0 {
		j.Upload.Parallelism = 1
	}
}

// LoadJob reads a job file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON.
func LoadJob(path string) (Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job: %w", err)
	}
	j, err := DecodeJob(b, filepath.Ext(path))
	if err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", path, err)
	}
	return j, nil
}

// DecodeJob decodes a job from b. ext selects the format (".yaml", ".yml" or
// anything else for JSON).
func DecodeJob(b []byte, ext string) (Job, error) {
	var j Job
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&j); err != nil {
			return Job{}, err
		}
	default:
		if err := json.Unmarshal(b, &j); err != nil {
			return Job{}, err
		}
	}
	j.ApplyDefaults()
	return j, nil
}

// DefaultTimeSeriesJob is the built-in CSV time-series upload.
func DefaultTimeSeriesJob(path string) Job {
	j := Job{
		Name:   "time_series_upload",
		Kind:   KindTimeSeries,
		Source: Source{Path: path, Format: "csv"},
		Schema: schema.TimeSeries,
		Upload: Upload{Timer: true},
	}
	j.ApplyDefaults()
	return j
}

// DefaultSheetJob is the built-in spreadsheet import: keep rows whose
// measurement exceeds 50, derive an adjusted value (+10%), and group each
// row into patient information and metrics.
func DefaultSheetJob(path, sheet, template string) Job {
	if template == "" {
		template = "processed_data"
	}
	j := Job{
		Name:     "sheet_import",
		Kind:     KindSheet,
		Template: template,
		Source:   Source{Path: path, Format: "xlsx", Sheet: sheet},
		Steps: []Step{
			{Kind: "filter", Options: Options{"field": "measurement_value", "op": ">", "value": 50.0}},
			{Kind: "derive", Options: Options{"target": "adjusted_value", "source": "measurement_value", "factor": 1.1}},
		},
		Record: RecordShape{
			Code:  "Patient_{patient_id}",
			Items: true,
			Groups: []Group{
				{Name: "User_Information", Fields: []schema.Field{
					{Source: "patient_id", Type: schema.KindInt, Required: true},
					{Source: "patient_name", Type: schema.KindString, Required: true},
					{Source: "age", Type: schema.KindInt},
				}},
				{Name: "Metrics", Fields: []schema.Field{
					{Source: "measurement_value", Type: schema.KindFloat, Required: true},
					{Source: "adjusted_value", Type: schema.KindFloat, Required: true},
					{Source: "measurement_date", Type: schema.KindString},
				}},
			},
		},
	}
	j.ApplyDefaults()
	return j
}
