package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitorplane/internal/sampledb"
)

func sample(at time.Time, field string, value interface{}) sampledb.Sample {
	fields := map[string]interface{}{}
	if field != "" {
		fields[field] = value
	}
	return sampledb.Sample{Timestamp: at, Fields: fields}
}

func TestEvaluateEmptyWindowNeverFires(t *testing.T) {
	c := Condition{Type: "threshold", Field: "latency_ms", Aggregation: AggLatest, Operator: OpGreater, Threshold: 100}
	fired, err := Evaluate(c, nil)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestEvaluateLatestGreaterFiresOnce(t *testing.T) {
	now := time.Now()
	window := []sampledb.Sample{
		sample(now, "latency_ms", 250.0),
		sample(now.Add(-time.Minute), "latency_ms", 90.0),
	}
	c := Condition{Type: "threshold", Field: "latency_ms", Aggregation: AggLatest, Operator: OpGreater, Threshold: 200}
	fired, err := Evaluate(c, window)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestEvaluateAverageSuppressesSpike(t *testing.T) {
	now := time.Now()
	window := []sampledb.Sample{
		sample(now, "latency_ms", 900.0),
		sample(now.Add(-time.Minute), "latency_ms", 50.0),
		sample(now.Add(-2*time.Minute), "latency_ms", 40.0),
	}
	c := Condition{Type: "threshold", Field: "latency_ms", Aggregation: AggAverage, Operator: OpGreater, Threshold: 500}
	fired, err := Evaluate(c, window)
	require.NoError(t, err)
	assert.False(t, fired, "a single spike should not push the average over threshold")
}

func TestEvaluateSkipsMissingField(t *testing.T) {
	now := time.Now()
	window := []sampledb.Sample{
		sample(now, "other_field", 1.0),
		sample(now.Add(-time.Minute), "other_field", 2.0),
	}
	c := Condition{Type: "threshold", Field: "latency_ms", Aggregation: AggLatest, Operator: OpGreater, Threshold: 10}
	fired, err := Evaluate(c, window)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestEvaluateEqualityUsesTolerance(t *testing.T) {
	now := time.Now()
	window := []sampledb.Sample{sample(now, "score", 9.9996)}
	c := Condition{Type: "threshold", Field: "score", Aggregation: AggLatest, Operator: OpEqual, Threshold: 10.0}
	fired, err := Evaluate(c, window)
	require.NoError(t, err)
	assert.True(t, fired, "difference is within epsilon of 1e-3")
}

func TestEvaluateMaxAndMin(t *testing.T) {
	now := time.Now()
	window := []sampledb.Sample{
		sample(now, "cpu", 30.0),
		sample(now.Add(-time.Minute), "cpu", 80.0),
		sample(now.Add(-2*time.Minute), "cpu", 10.0),
	}

	maxC := Condition{Type: "threshold", Field: "cpu", Aggregation: AggMax, Operator: OpGreaterEqual, Threshold: 80}
	fired, err := Evaluate(maxC, window)
	require.NoError(t, err)
	assert.True(t, fired)

	minC := Condition{Type: "threshold", Field: "cpu", Aggregation: AggMin, Operator: OpLess, Threshold: 20}
	fired, err = Evaluate(minC, window)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestValidateRejectsUnknownAggregationAndOperator(t *testing.T) {
	_, err := Evaluate(Condition{Type: "threshold", Field: "x", Aggregation: "median", Operator: OpGreater, Threshold: 1}, nil)
	require.Error(t, err)

	_, err = Evaluate(Condition{Type: "threshold", Field: "x", Aggregation: AggLatest, Operator: "~=", Threshold: 1}, nil)
	require.Error(t, err)
}

func TestValidateRejectsUnknownType(t *testing.T) {
	err := Validate(Condition{Type: "anomaly", Field: "x", Aggregation: AggLatest, Operator: OpGreater})
	require.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	raw := map[string]interface{}{
		"type":        "threshold",
		"field":       "latency_ms",
		"aggregation": "avg",
		"operator":    ">",
		"value":       100.0,
	}
	c, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Condition{Type: "threshold", Field: "latency_ms", Aggregation: AggAverage, Operator: OpGreater, Threshold: 100}, c)
}

func TestParseDefaultsAggregationToLatest(t *testing.T) {
	raw := map[string]interface{}{
		"type":     "threshold",
		"field":    "price",
		"operator": ">",
		"value":    50000.0,
	}
	c, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, AggLatest, c.Aggregation)
}
