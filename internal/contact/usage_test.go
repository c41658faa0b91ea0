package contact

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/contactenergy/pkg/models"
)

func TestLastDayOfMonth(t *testing.T) {
	tests := []struct {
		in   time.Time
		want int
	}{
		{in: time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), want: 31},
		{in: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), want: 29},
		{in: time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC), want: 28},
		{in: time.Date(2100, time.February, 10, 0, 0, 0, 0, time.UTC), want: 28},
		{in: time.Date(2000, time.February, 10, 0, 0, 0, 0, time.UTC), want: 29},
		{in: time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC), want: 30},
		{in: time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC), want: 31},
	}

	for _, tt := range tests {
		t.Run(tt.in.Format(dateLayout), func(t *testing.T) {
			got := LastDayOfMonth(tt.in)
			assert.Equal(t, tt.in.Year(), got.Year())
			assert.Equal(t, tt.in.Month(), got.Month())
			assert.Equal(t, tt.want, got.Day())
			assert.Equal(t, tt.in.Month(), got.AddDate(0, 0, -got.Day()+1).Month())
			assert.NotEqual(t, got.Month(), got.AddDate(0, 0, 1).Month(), "day after last day must be in the next month")
		})
	}
}

func TestLastDayOfMonthEveryDay(t *testing.T) {
	d := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d.Year() < 2026 {
		last := LastDayOfMonth(d)
		assert.Equal(t, d.Month(), last.Month())
		assert.Equal(t, time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC), last.AddDate(0, 0, 1))
		d = d.AddDate(0, 0, 1)
	}
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2024, time.December, 9, 14, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-12-01", start.Format(dateLayout))
	assert.Equal(t, "2024-12-31", end.Format(dateLayout))
}

func TestParseInterval(t *testing.T) {
	for _, s := range []string{"monthly", "Daily", " hourly "} {
		_, err := ParseInterval(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseInterval("weekly")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func usageQuery(t *testing.T, req *Request) url.Values {
	t.Helper()
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	return u.Query()
}

func TestLatestUsage(t *testing.T) {
	ft := newFakeTransport().on("/usage/v2/C1", http.StatusOK, `[
		{"date":"2024-02-01T00:00:00.000+13:00","value":"8","unit":"kWh","currency":"NZD"},
		{"date":"2024-03-01T00:00:00.000+13:00","value":"10","unit":"kWh","currency":"NZD","dollarValue":"2.5"}
	]`)
	c := newTokenClient(t, ft, WithAccount("A1", "C1"), WithClock(fixedClock(2024, time.December, 20)))

	got, err := c.LatestUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Value)
	require.NotNil(t, got.DollarValue)
	assert.Equal(t, 2.5, *got.DollarValue)

	reqs := ft.sent()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	q := usageQuery(t, reqs[0])
	assert.Equal(t, "A1", q.Get("ba"))
	assert.Equal(t, "monthly", q.Get("interval"))
	assert.Equal(t, "2024-12-01", q.Get("from"))
	assert.Equal(t, "2024-12-31", q.Get("to"))
}

func TestLatestUsageEmpty(t *testing.T) {
	c := newTokenClient(t, newFakeTransport().on("/usage/v2/C1", http.StatusOK, `[]`),
		WithAccount("A1", "C1"), WithClock(fixedClock(2024, time.March, 2)))

	_, err := c.LatestUsage(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestUsageRequiresResolvedAccount(t *testing.T) {
	ft := newFakeTransport()
	c := newTokenClient(t, ft)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.LatestUsage(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = c.Usage(context.Background(), day, day, models.Daily)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = c.HourlyUsage(context.Background(), day)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = c.LatestHourlyUsage(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.Empty(t, ft.sent())
}

func TestUsageRange(t *testing.T) {
	ft := newFakeTransport().on("/usage/v2/C1", http.StatusOK, `[
		{"date":"2024-03-02T00:00:00.000+13:00","value":2,"unit":"kWh","currency":"NZD"},
		{"date":"2024-03-01T00:00:00.000+13:00","value":1,"unit":"kWh","currency":"NZD"},
		{"date":"2024-03-03T00:00:00.000+13:00","value":3,"unit":"kWh","currency":"NZD"}
	]`)
	c := newTokenClient(t, ft, WithAccount("A1", "C1"))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	data, err := c.Usage(context.Background(), start, end, models.Daily)
	require.NoError(t, err)
	require.Len(t, data, 3)
	assert.Equal(t, []float64{3, 2, 1}, []float64{data[0].Value, data[1].Value, data[2].Value})

	q := usageQuery(t, ft.sent()[0])
	assert.Equal(t, "daily", q.Get("interval"))
	assert.Equal(t, "2024-03-01", q.Get("from"))
	assert.Equal(t, "2024-03-03", q.Get("to"))
}

func TestUsageRangeValidation(t *testing.T) {
	ft := newFakeTransport()
	c := newTokenClient(t, ft, WithAccount("A1", "C1"))
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Usage(context.Background(), start, end, models.Daily)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = c.Usage(context.Background(), end, start, models.Interval("weekly"))
	assert.ErrorIs(t, err, ErrInvalidRange)

	assert.Empty(t, ft.sent())
}

func TestUsageEmptyListIsNotAnError(t *testing.T) {
	for _, body := range []string{`[]`, `null`} {
		c := newTokenClient(t, newFakeTransport().on("/usage/v2/C1", http.StatusOK, body), WithAccount("A1", "C1"))
		day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

		data, err := c.Usage(context.Background(), day, day, models.Monthly)
		require.NoError(t, err)
		assert.Empty(t, data)
	}
}

func TestUsageResponseErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, kind: ErrAuthentication},
		{name: "forbidden", status: http.StatusForbidden, kind: ErrAuthentication},
		{name: "not found", status: http.StatusNotFound, kind: ErrTransport},
		{name: "server error", status: http.StatusServiceUnavailable, kind: ErrTransport},
		{name: "object instead of list", status: http.StatusOK, body: `{"error":"nope"}`, kind: ErrTransport},
		{name: "truncated", status: http.StatusOK, body: `[{"date":`, kind: ErrTransport},
		{name: "malformed record", status: http.StatusOK, body: `[{"unit":"kWh"}]`, kind: ErrMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTokenClient(t, newFakeTransport().on("/usage/v2/C1", tt.status, tt.body), WithAccount("A1", "C1"))
			day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

			_, err := c.Usage(context.Background(), day, day, models.Daily)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestHourlyUsage(t *testing.T) {
	ft := newFakeTransport().on("/usage/v2/C1", http.StatusOK, `[
		{"date":"2024-03-01T01:00:00.000+13:00","value":0.4,"unit":"kWh","currency":"NZD"},
		{"date":"2024-03-01T00:00:00.000+13:00","value":0.3,"unit":"kWh","currency":"NZD"}
	]`)
	c := newTokenClient(t, ft, WithAccount("A1", "C1"))

	data, err := c.HourlyUsage(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, 0, data[0].Timestamp.Hour())
	assert.Equal(t, 1, data[1].Timestamp.Hour())

	q := usageQuery(t, ft.sent()[0])
	assert.Equal(t, "hourly", q.Get("interval"))
	assert.Equal(t, "2024-03-01", q.Get("from"))
	assert.Equal(t, "2024-03-01", q.Get("to"))
}

func TestLatestHourlyUsage(t *testing.T) {
	ft := newFakeTransport().
		on("/usage/v2/C1", http.StatusOK, `[
			{"date":"2024-03-02T00:00:00.000+13:00","value":12,"unit":"kWh","currency":"NZD"},
			{"date":"2024-03-04T00:00:00.000+13:00","value":14,"unit":"kWh","currency":"NZD"},
			{"date":"2024-03-03T00:00:00.000+13:00","value":13,"unit":"kWh","currency":"NZD"}
		]`).
		on("/usage/v2/C1", http.StatusOK, `[
			{"date":"2024-03-04T02:00:00.000+13:00","value":0.6,"unit":"kWh","currency":"NZD"},
			{"date":"2024-03-04T00:00:00.000+13:00","value":0.4,"unit":"kWh","currency":"NZD"},
			{"date":"2024-03-04T01:00:00.000+13:00","value":0.5,"unit":"kWh","currency":"NZD"}
		]`)
	c := newTokenClient(t, ft, WithAccount("A1", "C1"), WithClock(fixedClock(2024, time.March, 7)))

	data, err := c.LatestHourlyUsage(context.Background())
	require.NoError(t, err)
	require.Len(t, data, 3)
	assert.Equal(t, []float64{0.4, 0.5, 0.6}, []float64{data[0].Value, data[1].Value, data[2].Value})

	reqs := ft.sent()
	require.Len(t, reqs, 2)

	daily := usageQuery(t, reqs[0])
	assert.Equal(t, "daily", daily.Get("interval"))
	assert.Equal(t, "2024-03-01", daily.Get("from"))
	assert.Equal(t, "2024-03-31", daily.Get("to"))

	hourly := usageQuery(t, reqs[1])
	assert.Equal(t, "hourly", hourly.Get("interval"))
	assert.Equal(t, "2024-03-04", hourly.Get("from"))
	assert.Equal(t, "2024-03-04", hourly.Get("to"))
}

func TestLatestHourlyUsageNoDailyData(t *testing.T) {
	ft := newFakeTransport().on("/usage/v2/C1", http.StatusOK, `[]`)
	c := newTokenClient(t, ft, WithAccount("A1", "C1"), WithClock(fixedClock(2024, time.March, 1)))

	_, err := c.LatestHourlyUsage(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Len(t, ft.sent(), 1, "hourly query must not be sent without a discovered day")
}
