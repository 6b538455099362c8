package config

import (
	"fmt"
	"regexp"
	"strings"

	"gcload/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// job (e.g. "steps[1].options.field") or an environment variable name.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// ValidateJob performs static validation of a Job. It does not mutate the
// job; callers decide whether warnings are fatal.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "name",
			Message:  "name is empty; it labels metrics and ledger entries",
		})
	}

	switch j.Kind {
	case KindTimeSeries, KindRecords, KindSheet, KindDelete:
	case "":
		issues = append(issues, Issue{Severity: SeverityError, Path: "kind", Message: "kind must not be empty"})
	default:
		issues = append(issues, Issue{Severity: SeverityError, Path: "kind", Message: fmt.Sprintf("unknown job kind %q", j.Kind)})
	}

	if (j.Kind == KindRecords || j.Kind == KindSheet) && strings.TrimSpace(j.Template) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "template", Message: "record jobs require a template"})
	}

	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateSteps(j.Steps)...)

	if j.Kind == KindTimeSeries {
		issues = append(issues, validateSchema("schema", j.Schema)...)
	}
	if j.Kind == KindSheet {
		issues = append(issues, validateRecord(j.Record)...)
	}

	issues = append(issues, validateUpload(j.Upload)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Path) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "source.path", Message: "source path must not be empty"})
	}
	switch s.Format {
	case "", "csv", "json", "ndjson", "xlsx":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.format",
			Message:  fmt.Sprintf("unsupported format %q; expected csv, json, ndjson or xlsx", s.Format),
		})
	}
	if s.Sheet != "" && s.Format != "" && s.Format != "xlsx" {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "source.sheet", Message: "sheet is ignored for non-spreadsheet sources"})
	}
	return issues
}

func validateSteps(steps []Step) []Issue {
	var issues []Issue
	for i, st := range steps {
		path := fmt.Sprintf("steps[%d]", i)
		switch st.Kind {
		case "filter":
			if st.Options.String("field", "") == "" {
				issues = append(issues, Issue{Severity: SeverityError, Path: path + ".options.field", Message: "filter requires a field"})
			}
			switch st.Options.String("op", "") {
			case ">", ">=", "<", "<=", "==", "!=":
			default:
				issues = append(issues, Issue{Severity: SeverityError, Path: path + ".options.op", Message: "filter op must be one of > >= < <= == !="})
			}
			if st.Options.Any("value") == nil {
				issues = append(issues, Issue{Severity: SeverityError, Path: path + ".options.value", Message: "filter requires a numeric value"})
			}
		case "derive":
			if st.Options.String("target", "") == "" || st.Options.String("source", "") == "" {
				issues = append(issues, Issue{Severity: SeverityError, Path: path + ".options", Message: "derive requires source and target"})
			}
			if st.Options.Float("factor", 0) == 0 {
				issues = append(issues, Issue{Severity: SeverityWarning, Path: path + ".options.factor", Message: "derive factor is zero or missing; derived values will be 0"})
			}
		case "require":
			if len(st.Options.StringSlice("fields")) == 0 {
				issues = append(issues, Issue{Severity: SeverityWarning, Path: path + ".options.fields", Message: "require step has no fields"})
			}
		case "dedup":
			if len(st.Options.StringSlice("keys")) == 0 {
				issues = append(issues, Issue{Severity: SeverityWarning, Path: path + ".options.keys", Message: "dedup step has no keys; whole rows are compared"})
			}
		case "":
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".kind", Message: "step kind must not be empty"})
		default:
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".kind", Message: fmt.Sprintf("unknown step kind %q", st.Kind)})
		}
	}
	return issues
}

func validateSchema(path string, s schema.Schema) []Issue {
	if len(s.Fields) == 0 {
		return []Issue{{Severity: SeverityError, Path: path + ".fields", Message: "schema has no fields"}}
	}
	if err := s.Check(); err != nil {
		var issues []Issue
		for _, line := range strings.Split(err.Error(), "\n") {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: line})
		}
		return issues
	}
	return nil
}

func validateRecord(r RecordShape) []Issue {
	var issues []Issue
	if len(r.Groups) == 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "record.groups", Message: "at least one group is required"})
	}
	seen := map[string]bool{}
	known := map[string]bool{}
	for i, g := range r.Groups {
		path := fmt.Sprintf("record.groups[%d]", i)
		if g.Name == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".name", Message: "group name must not be empty"})
		}
		if seen[g.Name] {
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".name", Message: fmt.Sprintf("duplicate group %q", g.Name)})
		}
		seen[g.Name] = true
		issues = append(issues, validateSchema(path, schema.Schema{Fields: g.Fields})...)
		for _, f := range g.Fields {
			known[f.Source] = true
		}
	}
	for _, m := range placeholderRe.FindAllStringSubmatch(r.Code, -1) {
		if !known[m[1]] {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "record.code",
				Message:  fmt.Sprintf("placeholder {%s} is not a grouped field; it must still be present in every row", m[1]),
			})
		}
	}
	return issues
}

func validateUpload(u Upload) []Issue {
	var issues []Issue
	if u.ChunkSize < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "upload.chunk_size", Message: "chunk_size must not be negative"})
	}
	if u.MaxRetries != nil && *u.MaxRetries < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "upload.max_retries", Message: "max_retries must not be negative"})
	}
	if u.Parallelism > 8 {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "upload.parallelism", Message: "parallelism above 8 is likely to be throttled by the platform"})
	}
	return issues
}
