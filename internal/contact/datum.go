package contact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/contactenergy/pkg/models"
)

// ParseUsageDatum maps one raw usage record into a UsageDatum.
// currency, date, value and unit are mandatory; the extended readings are
// left nil when absent or not numeric.
func ParseUsageDatum(raw json.RawMessage) (models.UsageDatum, error) {
	const op = "parse usage record"

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.UsageDatum{}, wrapError(ErrMalformedRecord, op, err)
	}
	if fields == nil {
		return models.UsageDatum{}, newError(ErrMalformedRecord, op, "record is null")
	}

	var d models.UsageDatum
	var err error

	if d.Currency, err = requiredString(fields, "currency"); err != nil {
		return models.UsageDatum{}, wrapError(ErrMalformedRecord, op, err)
	}
	if d.Unit, err = requiredString(fields, "unit"); err != nil {
		return models.UsageDatum{}, wrapError(ErrMalformedRecord, op, err)
	}

	date, err := requiredString(fields, "date")
	if err != nil {
		return models.UsageDatum{}, wrapError(ErrMalformedRecord, op, err)
	}
	if d.Timestamp, err = parseTimestamp(date); err != nil {
		return models.UsageDatum{}, wrapError(ErrMalformedRecord, op, err)
	}

	value, ok := number(fields["value"])
	if !ok {
		return models.UsageDatum{}, newError(ErrMalformedRecord, op, "field value is missing or not numeric")
	}
	d.Value = value

	d.DollarValue = optionalNumber(fields["dollarValue"])
	d.OffpeakValue = optionalNumber(fields["offpeakValue"])
	d.UnchargedValue = optionalNumber(fields["unchargedValue"])
	d.OffpeakDollarValue = optionalNumber(fields["offpeakDollarValue"])

	return d, nil
}

// ParseUsage parses a list of raw records, failing on the first malformed one
func ParseUsage(raw []json.RawMessage) ([]models.UsageDatum, error) {
	out := make([]models.UsageDatum, 0, len(raw))
	for i, item := range raw {
		d, err := ParseUsageDatum(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// parseTimestamp accepts "2024-03-01T00:00:00.000+13:00" and the same without fractional seconds
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("field date: %w", err)
	}
	return t, nil
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", fmt.Errorf("field %s is missing", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %s is not a string", key)
	}
	return s, nil
}

// number decodes a JSON number or a numeric string
func number(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func optionalNumber(raw json.RawMessage) *float64 {
	f, ok := number(raw)
	if !ok {
		return nil
	}
	return &f
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
