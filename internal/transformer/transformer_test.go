package transformer

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcload/internal/config"
	"gcload/internal/records"
	"gcload/internal/schema"
)

func tsRow(user, value string) records.Row {
	return records.Row{
		"meta.userId":     user,
		"meta.source":     "deviceA",
		"meta.metric":     "HR",
		"meta.externalId": "ext1",
		"meta.batch":      "b1",
		"point.start":     "2023-01-01T00:00:00Z",
		"point.end":       "2023-01-01T00:01:00Z",
		"point.value":     value,
	}
}

func TestTimeSeries_Transform(t *testing.T) {
	got, err := NewTimeSeries().Transform([]records.Row{tsRow("1", "72"), tsRow(" 2 ", "80")})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, records.TimeSeriesPoint{
		Meta:  records.Meta{UserID: 1, Source: "deviceA", Metric: "HR", ExternalID: "ext1", Batch: "b1"},
		Point: records.Point{Start: "2023-01-01T00:00:00Z", End: "2023-01-01T00:01:00Z", Value: 72},
	}, got[0])
	assert.Equal(t, 2, got[1].Meta.UserID)

	b, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"meta":{"userId":1,"source":"deviceA","metric":"HR","externalId":"ext1","batch":"b1"},
		"point":{"start":"2023-01-01T00:00:00Z","end":"2023-01-01T00:01:00Z","value":72}}`, string(b))
}

func TestTimeSeries_FirstBadRowFailsBatch(t *testing.T) {
	bad := tsRow("1", "72.5")
	_, err := NewTimeSeries().Transform([]records.Row{tsRow("1", "1"), bad})
	require.Error(t, err)
	assert.True(t, records.IsFormatError(err))
	assert.Contains(t, err.Error(), "row 2")
}

func TestTimeSeries_SchemaMustFitPoint(t *testing.T) {
	s := schema.TimeSeries
	s.Fields = append(append([]schema.Field(nil), s.Fields...), schema.Field{Source: "extra", Target: "meta.extra"})
	row := tsRow("1", "2")
	row["extra"] = "x"
	_, err := TimeSeries{Schema: s}.Transform([]records.Row{row})
	assert.True(t, records.IsFormatError(err))
}

func TestTimeSeries_RoundTrip(t *testing.T) {
	in := tsRow("7", "99")
	batch, err := NewTimeSeries().Transform([]records.Row{in})
	require.NoError(t, err)

	b, err := json.Marshal(batch[0])
	require.NoError(t, err)
	var nested map[string]any
	require.NoError(t, json.Unmarshal(b, &nested))

	back, err := schema.TimeSeries.Flatten(nested, 1)
	require.NoError(t, err)
	for k, v := range in {
		assert.Equal(t, v, schema.FormatValue(back[k]), k)
	}
}

func TestGeneric_SheetShape(t *testing.T) {
	job := config.DefaultSheetJob("in.xlsx", "", "")
	chain, err := FromSteps(job.Steps)
	require.NoError(t, err)

	rows, err := chain.Apply([]records.Row{
		{"patient_id": "101", "patient_name": "Ann", "age": "40", "measurement_value": "60", "measurement_date": "2024-01-02"},
		{"patient_id": "102", "patient_name": "Bob", "age": nil, "measurement_value": "45", "measurement_date": "2024-01-03"},
		{"patient_id": "103", "patient_name": "Cy", "age": nil, "measurement_value": "80", "measurement_date": nil},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	batch, err := NewGeneric(job.Record).Transform(rows)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, "Patient_101", batch[0].Code)
	assert.Equal(t, map[string]any{"patient_id": 101, "patient_name": "Ann", "age": 40}, batch[0].Data["User_Information"])
	metrics := batch[0].Data["Metrics"].(map[string]any)
	assert.Equal(t, 60.0, metrics["measurement_value"])
	assert.InDelta(t, 66.0, metrics["adjusted_value"], 1e-9)
	assert.Equal(t, "2024-01-02", metrics["measurement_date"])

	assert.Equal(t, "Patient_103", batch[1].Code)
	assert.Equal(t, map[string]any{"patient_id": 103, "patient_name": "Cy"}, batch[1].Data["User_Information"])
}

func TestGeneric_MissingPlaceholder(t *testing.T) {
	g := Generic{Code: "Patient_{patient_id}_{site}"}
	_, err := g.Transform([]records.Row{{"patient_id": "1"}})
	require.Error(t, err)
	assert.True(t, records.IsFormatError(err))
	assert.Contains(t, err.Error(), `"site"`)

	got, err := Generic{}.Transform([]records.Row{{"x": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "", got[0].Code)
	assert.Empty(t, got[0].Data)
}

func TestGeneric_EveryKindFeedsTheCode(t *testing.T) {
	g := NewGeneric(config.RecordShape{
		Code: "{id}-{ok}-{score}-{day}-{tag}",
		Groups: []config.Group{{Name: "G", Fields: []schema.Field{
			{Source: "id", Type: schema.KindInt, Required: true},
			{Source: "ok", Type: schema.KindBool, Required: true},
			{Source: "score", Target: "m.score", Type: schema.KindFloat, Required: true},
			{Source: "day", Type: schema.KindDate, Layout: "2006-01-02", Required: true},
			{Source: "tag", Type: schema.KindAny},
		}}},
	})
	got, err := g.Transform([]records.Row{{"id": " 7 ", "ok": "yes", "score": "2.50", "day": "2024-01-02", "tag": "x"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "7-true-2.5-2024-01-02-x", got[0].Code)
	assert.Equal(t, map[string]any{"score": 2.5}, got[0].Data["G"].(map[string]any)["m"])
}

func TestPassthrough(t *testing.T) {
	got, err := Passthrough{}.Transform([]records.Row{
		{"code": "P1", "data": map[string]any{"name": "Ann"}},
		{"name": "Bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, records.Batch[records.GenericRecord]{
		{Code: "P1", Data: map[string]any{"name": "Ann"}},
		{Data: map[string]any{"name": "Bob"}},
	}, got)

	for _, bad := range []records.Row{
		{"data": "not an object"},
		{"code": 5, "data": map[string]any{}},
		{"code": "P", "data": map[string]any{}, "extra": true},
		{"code": "Patient_1", "name": "Ann"},
	} {
		_, err := Passthrough{}.Transform([]records.Row{bad})
		assert.True(t, records.IsFormatError(err), "%v", bad)
	}

	_, err = Passthrough{}.Transform([]records.Row{{"name": "Bob"}, {"code": "Patient_1", "name": "Ann"}})
	var fe *records.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Line)
	assert.Equal(t, "data", fe.Field)
}

func TestDeletions_IdempotentAndOrderIndependent(t *testing.T) {
	ids := []string{"c", " a", "b", "a ", "c"}
	first, err := Deletions(ids)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, first.IDs())

	again, err := Deletions(first.IDs())
	require.NoError(t, err)
	assert.Equal(t, first, again)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]string(nil), ids...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := Deletions(shuffled)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}

	b, err := json.Marshal(first)
	require.NoError(t, err)
	assert.JSONEq(t, `{"records":[{"id":"a"},{"id":"b"},{"id":"c"}]}`, string(b))
}

func TestDeletions_EmptyID(t *testing.T) {
	_, err := Deletions([]string{"a", "  "})
	assert.True(t, records.IsFormatError(err))
}

func TestFromSteps(t *testing.T) {
	chain, err := FromSteps([]config.Step{
		{Kind: "require", Options: config.Options{"fields": []any{"id"}}},
		{Kind: "dedup", Options: config.Options{"keys": []any{"id"}}},
	})
	require.NoError(t, err)
	out, err := chain.Apply([]records.Row{{"id": "1"}, {"id": "1"}, {"id": "2"}})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = FromSteps([]config.Step{{Kind: "explode"}})
	assert.Error(t, err)
}
