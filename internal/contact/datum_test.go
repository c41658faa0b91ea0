package contact

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/contactenergy/pkg/models"
)

func TestParseUsageDatumAllFields(t *testing.T) {
	raw := json.RawMessage(`{
		"currency": "NZD",
		"date": "2024-03-01T00:00:00.000+13:00",
		"value": "10.5",
		"unit": "kWh",
		"dollarValue": "3.21",
		"offpeakValue": 4,
		"unchargedValue": "0.00",
		"offpeakDollarValue": 1.25
	}`)

	d, err := ParseUsageDatum(raw)
	require.NoError(t, err)

	assert.Equal(t, "NZD", d.Currency)
	assert.Equal(t, "kWh", d.Unit)
	assert.Equal(t, 10.5, d.Value)
	require.NotNil(t, d.DollarValue)
	assert.Equal(t, 3.21, *d.DollarValue)
	require.NotNil(t, d.OffpeakValue)
	assert.Equal(t, 4.0, *d.OffpeakValue)
	require.NotNil(t, d.UnchargedValue)
	assert.Equal(t, 0.0, *d.UnchargedValue)
	require.NotNil(t, d.OffpeakDollarValue)
	assert.Equal(t, 1.25, *d.OffpeakDollarValue)

	want := time.Date(2024, time.February, 29, 11, 0, 0, 0, time.UTC)
	assert.True(t, d.Timestamp.Equal(want), "got %s", d.Timestamp)
	_, offset := d.Timestamp.Zone()
	assert.Equal(t, 13*3600, offset)
	assert.Equal(t, "2024-03-01", d.Timestamp.Format(dateLayout))
}

func TestParseUsageDatumOptionalFieldsAbsent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing", raw: `{"currency":"NZD","date":"2024-03-01T00:00:00.000+13:00","value":1,"unit":"kWh"}`},
		{name: "null", raw: `{"currency":"NZD","date":"2024-03-01T00:00:00.000+13:00","value":1,"unit":"kWh","dollarValue":null,"offpeakValue":null,"unchargedValue":null,"offpeakDollarValue":null}`},
		{name: "non-numeric", raw: `{"currency":"NZD","date":"2024-03-01T00:00:00.000+13:00","value":1,"unit":"kWh","dollarValue":"n/a","offpeakValue":"","unchargedValue":true,"offpeakDollarValue":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseUsageDatum(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, 1.0, d.Value)
			assert.Nil(t, d.DollarValue)
			assert.Nil(t, d.OffpeakValue)
			assert.Nil(t, d.UnchargedValue)
			assert.Nil(t, d.OffpeakDollarValue)
		})
	}
}

func TestParseUsageDatumMandatoryFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing value", raw: `{"currency":"NZD","date":"2024-03-01T00:00:00.000+13:00","unit":"kWh"}`},
		{name: "null value", raw: `{"currency":"NZD","date":"2024-03-01T00:00:00.000+13:00","value":null,"unit":"kWh"}`},
		{name: "non-numeric value", raw: `{"currency":"NZD","date":"2024-03-01T00:00:00.000+13:00","value":"lots","unit":"kWh"}`},
		{name: "missing date", raw: `{"currency":"NZD","value":"1","unit":"kWh"}`},
		{name: "bad date", raw: `{"currency":"NZD","date":"01/03/2024","value":"1","unit":"kWh"}`},
		{name: "missing unit", raw: `{"currency":"NZD","date":"2024-03-01T00:00:00.000+13:00","value":"1"}`},
		{name: "missing currency", raw: `{"date":"2024-03-01T00:00:00.000+13:00","value":"1","unit":"kWh"}`},
		{name: "not an object", raw: `[1,2,3]`},
		{name: "null record", raw: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUsageDatum(json.RawMessage(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestParseUsageDatumWithoutFraction(t *testing.T) {
	d, err := ParseUsageDatum(json.RawMessage(`{"currency":"NZD","date":"2024-03-01T13:00:00Z","value":2,"unit":"kWh"}`))
	require.NoError(t, err)
	assert.True(t, d.Timestamp.Equal(time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)))
}

func TestParseUsageStopsAtFirstBadRecord(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"currency":"NZD","date":"2024-03-01T00:00:00.000+13:00","value":1,"unit":"kWh"}`),
		json.RawMessage(`{"currency":"NZD","value":1,"unit":"kWh"}`),
	}

	_, err := ParseUsage(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.Contains(t, err.Error(), "record 1")
}

func TestSortOrders(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	input := func() []models.UsageDatum {
		return []models.UsageDatum{{Timestamp: t2, Value: 2}, {Timestamp: t1, Value: 1}, {Timestamp: t3, Value: 3}}
	}
	values := func(data []models.UsageDatum) []float64 {
		out := make([]float64, 0, len(data))
		for _, d := range data {
			out = append(out, d.Value)
		}
		return out
	}

	desc := input()
	SortDescending(desc)
	assert.Equal(t, []float64{3, 2, 1}, values(desc))

	asc := input()
	SortAscending(asc)
	assert.Equal(t, []float64{1, 2, 3}, values(asc))
}

func TestSortIsStable(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	later := ts.Add(time.Hour)
	data := []models.UsageDatum{
		{Timestamp: ts, Value: 1},
		{Timestamp: later, Value: 2},
		{Timestamp: ts, Value: 3},
		{Timestamp: ts, Value: 4},
	}

	asc := append([]models.UsageDatum(nil), data...)
	SortAscending(asc)
	assert.Equal(t, []float64{1, 3, 4, 2}, []float64{asc[0].Value, asc[1].Value, asc[2].Value, asc[3].Value})

	desc := append([]models.UsageDatum(nil), data...)
	SortDescending(desc)
	assert.Equal(t, []float64{2, 1, 3, 4}, []float64{desc[0].Value, desc[1].Value, desc[2].Value, desc[3].Value})
}
