package schema

// TimeSeries maps the flat dotted columns of a time-series CSV export onto
// the {meta, point} shape of the time-series API. Every column is required.
var TimeSeries = Schema{
	Name: "time_series",
	Fields: []Field{
		{Source: "meta.userId", Target: "meta.userId", Type: KindInt, Required: true},
		{Source: "meta.source", Target: "meta.source", Type: KindString, Required: true},
		{Source: "meta.metric", Target: "meta.metric", Type: KindString, Required: true},
		{Source: "meta.externalId", Target: "meta.externalId", Type: KindString, Required: true},
		{Source: "meta.batch", Target: "meta.batch", Type: KindString, Required: true},
		{Source: "point.start", Target: "point.start", Type: KindString, Required: true},
		{Source: "point.end", Target: "point.end", Type: KindString, Required: true},
		{Source: "point.value", Target: "point.value", Type: KindInt, Required: true},
	},
}

// TimeSeriesQuery flattens points returned by the time-series query API into
// short column names for analysis. Query responses carry the measurement
// under point.val; point.value is accepted as well.
var TimeSeriesQuery = Schema{
	Name: "time_series_query",
	Fields: []Field{
		{Source: "userId", Target: "meta.userId", Type: KindInt, Required: true},
		{Source: "source", Target: "meta.source", Type: KindString},
		{Source: "metric", Target: "meta.metric", Type: KindString},
		{Source: "externalId", Target: "meta.externalId", Type: KindString},
		{Source: "batch", Target: "meta.batch", Type: KindString},
		{Source: "start", Target: "point.start", Type: KindString, Required: true},
		{Source: "end", Target: "point.end", Type: KindString},
		{Source: "value", Target: "point.val", Type: KindFloat, Required: true, Alt: []string{"point.value"}},
	},
}
