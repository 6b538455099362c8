package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcload/internal/schema"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv(mapEnv(nil))

	assert.Empty(t, cfg.Token)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, "none", cfg.MetricsBackend)
	assert.Equal(t, "http://localhost:9091", cfg.PushgatewayURL)
	assert.Equal(t, "127.0.0.1:8125", cfg.DatadogAddr)
	assert.Empty(t, cfg.Ledger)
}

func TestLoadFromEnv_Values(t *testing.T) {
	cfg := LoadFromEnv(mapEnv(map[string]string{
		EnvToken:          " tok ",
		EnvRefreshToken:   "ref",
		EnvEnvironment:    "PROD",
		EnvBaseURL:        "https://example.test",
		EnvTimeout:        "15",
		EnvMetricsBackend: "datadog",
		EnvLedger:         "sqlite://ledger.db",
	}))

	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "ref", cfg.RefreshToken)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "https://example.test", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, "datadog", cfg.MetricsBackend)
	assert.Equal(t, "sqlite://ledger.db", cfg.Ledger)

	cfg = LoadFromEnv(mapEnv(map[string]string{EnvTimeout: "1m30s"}))
	assert.Equal(t, 90*time.Second, cfg.Timeout)

	cfg = LoadFromEnv(mapEnv(map[string]string{EnvTimeout: "soon"}))
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestConfig_Validate(t *testing.T) {
	issues := LoadFromEnv(mapEnv(nil)).Validate()
	require.True(t, HasErrors(issues))

	paths := map[string]IssueSeverity{}
	for _, iss := range issues {
		paths[iss.Path] = iss.Severity
	}
	assert.Equal(t, SeverityError, paths[EnvToken])
	assert.Equal(t, SeverityWarning, paths[EnvRefreshToken])
	assert.Equal(t, SeverityError, paths[EnvEnvironment])

	ok := LoadFromEnv(mapEnv(map[string]string{EnvToken: "t", EnvRefreshToken: "r", EnvEnvironment: "dev"}))
	assert.Empty(t, ok.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GCLOAD_TEST_A=from_file\nGCLOAD_TEST_B=from_file\n"), 0o600))

	t.Setenv("GCLOAD_TEST_B", "from_env")
	t.Setenv("GCLOAD_TEST_A", "")
	require.NoError(t, os.Unsetenv("GCLOAD_TEST_A"))

	require.NoError(t, LoadDotEnv(path, true))
	assert.Equal(t, "from_file", os.Getenv("GCLOAD_TEST_A"))
	assert.Equal(t, "from_env", os.Getenv("GCLOAD_TEST_B"))

	missing := filepath.Join(dir, "missing.env")
	assert.NoError(t, LoadDotEnv(missing, false))
	assert.Error(t, LoadDotEnv(missing, true))
	assert.NoError(t, LoadDotEnv("", true))
}

func TestDecodeJob_YAML(t *testing.T) {
	const doc = `
name: hemodynamics
kind: timeseries
source:
  path: Test-datasets/50000.csv
schema:
  name: ts
  fields:
    - { source: meta.userId, target: meta.userId, type: int, required: true }
    - { source: point.value, target: point.value, type: integer, required: true }
steps:
  - kind: dedup
    options:
      keys: [meta.externalId, point.start]
upload:
  chunk_size: 500
`
	j, err := DecodeJob([]byte(doc), ".yaml")
	require.NoError(t, err)

	assert.Equal(t, "hemodynamics", j.Name)
	assert.Equal(t, KindTimeSeries, j.Kind)
	require.Len(t, j.Schema.Fields, 2)
	assert.Equal(t, schema.KindInt, j.Schema.Fields[0].Type)
	assert.Equal(t, []string{"meta.externalId", "point.start"}, j.Steps[0].Options.StringSlice("keys"))
	assert.Equal(t, 500, j.Upload.ChunkSize)
	assert.Equal(t, DefaultMaxRetries, j.Upload.Retries())
	assert.Equal(t, 1, j.Upload.Parallelism)
	assert.Empty(t, ValidateJob(j))
}

func TestDecodeJob_ZeroRetriesIsKept(t *testing.T) {
	j, err := DecodeJob([]byte("name: x\nkind: timeseries\nsource: {path: a.csv}\nupload: {max_retries: 0}\n"), ".yaml")
	require.NoError(t, err)
	require.NotNil(t, j.Upload.MaxRetries)
	assert.Equal(t, 0, j.Upload.Retries())

	j, err = DecodeJob([]byte(`{"name":"x","kind":"timeseries","source":{"path":"a.csv"},"upload":{"max_retries":0}}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, 0, j.Upload.Retries())

	j, err = DecodeJob([]byte(`{"name":"x","kind":"timeseries","source":{"path":"a.csv"}}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, j.Upload.Retries())

	neg := -1
	issues := validateUpload(Upload{MaxRetries: &neg})
	require.Len(t, issues, 1)
	assert.Equal(t, "upload.max_retries", issues[0].Path)
	assert.Empty(t, validateUpload(Upload{}))
}

func TestDecodeJob_YAMLUnknownField(t *testing.T) {
	_, err := DecodeJob([]byte("name: x\nkind: records\nsauce: {}\n"), ".yml")
	assert.Error(t, err)
}

func TestDecodeJob_JSONNullOptions(t *testing.T) {
	j, err := DecodeJob([]byte(`{"name":"x","kind":"records","template":"T","source":{"path":"a.json"},"steps":[{"kind":"require","options":null}]}`), ".json")
	require.NoError(t, err)
	require.Len(t, j.Steps, 1)
	assert.NotNil(t, j.Steps[0].Options)
}

func TestLoadJob_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"p","kind":"records","template":"Patients_test","source":{"path":"p.json"}}`), 0o600))

	j, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, "Patients_test", j.Template)

	_, err = LoadJob(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultJobsAreValid(t *testing.T) {
	assert.Empty(t, ValidateJob(DefaultTimeSeriesJob("in.csv")))
	assert.Empty(t, ValidateJob(DefaultSheetJob("in.xlsx", "Sheet1", "")))

	j := DefaultSheetJob("in.xlsx", "", "")
	assert.Equal(t, "processed_data", j.Template)
	assert.True(t, j.Record.Items)
}

func TestExampleJobsAreValid(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "configs", "jobs", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		j, err := LoadJob(p)
		require.NoError(t, err, p)
		issues := ValidateJob(j)
		assert.False(t, HasErrors(issues), "%s: %v", p, issues)
	}
}

func TestValidateJob_Findings(t *testing.T) {
	j := Job{
		Kind:   KindSheet,
		Source: Source{Format: "parquet", Sheet: "S"},
		Steps: []Step{
			{Kind: "filter", Options: Options{"op": "~"}},
			{Kind: "derive", Options: Options{}},
			{Kind: "explode"},
		},
		Record: RecordShape{
			Code: "P_{missing}",
			Groups: []Group{
				{Name: "G", Fields: []schema.Field{{Source: "a", Type: schema.KindInt}}},
				{Name: "G", Fields: []schema.Field{{Source: "b", Type: "weird"}}},
			},
		},
		Upload: Upload{ChunkSize: -1},
	}
	issues := ValidateJob(j)
	require.True(t, HasErrors(issues))

	byPath := map[string]bool{}
	for _, iss := range issues {
		byPath[iss.Path] = true
	}
	for _, p := range []string{
		"name", "template", "source.path", "source.format",
		"steps[0].options.field", "steps[0].options.op", "steps[0].options.value",
		"steps[1].options", "steps[2].kind",
		"record.groups[1].name", "record.groups[1]", "record.code",
		"upload.chunk_size",
	} {
		assert.True(t, byPath[p], "expected issue at %s", p)
	}
}

func TestOptions_Getters(t *testing.T) {
	o := Options{
		"s":  "x",
		"b":  true,
		"i":  3.0,
		"yi": 4,
		"f":  1.5,
		"m":  map[string]any{"k": "v", "n": 1},
		"l":  []any{"a", 1, "b"},
	}
	assert.Equal(t, "x", o.String("s", "d"))
	assert.Equal(t, "d", o.String("b", "d"))
	assert.True(t, o.Bool("b", false))
	assert.Equal(t, 3, o.Int("i", 0))
	assert.Equal(t, 4, o.Int("yi", 0))
	assert.Equal(t, 1.5, o.Float("f", 0))
	assert.Equal(t, 4.0, o.Float("yi", 0))
	assert.Equal(t, map[string]string{"k": "v"}, o.StringMap("m"))
	assert.Equal(t, []string{"a", "b"}, o.StringSlice("l"))
	assert.Nil(t, o.StringSlice("missing"))
	assert.Nil(t, o.Any("missing"))
}
