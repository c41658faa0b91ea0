package models

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the time bucketing of a usage query
type Interval string

const (
	Monthly Interval = "monthly"
	Daily   Interval = "daily"
	Hourly  Interval = "hourly"
)

// Intervals lists every interval the usage API understands
var Intervals = []Interval{Monthly, Daily, Hourly}

// Valid reports whether i is one of the known intervals
func (i Interval) Valid() bool {
	switch i {
	case Monthly, Daily, Hourly:
		return true
	}
	return false
}

// UsageDatum is one usage record returned by the API.
// The four optional readings are nil when the API omits them or sends something non-numeric.
type UsageDatum struct {
	Timestamp          time.Time `json:"timestamp"`
	Currency           string    `json:"currency"`
	Unit               string    `json:"unit"`
	Value              float64   `json:"value"`
	DollarValue        *float64  `json:"dollar_value,omitempty"`
	OffpeakValue       *float64  `json:"offpeak_value,omitempty"`
	UnchargedValue     *float64  `json:"uncharged_value,omitempty"`
	OffpeakDollarValue *float64  `json:"offpeak_dollar_value,omitempty"`
}

func (d UsageDatum) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: value=%g %s", d.Timestamp.Format(time.RFC3339), d.Value, d.Unit)
	fmt.Fprintf(&b, ", dollar_value=%s", formatOptional(d.DollarValue))
	fmt.Fprintf(&b, ", uncharged_value=%s", formatOptional(d.UnchargedValue))
	fmt.Fprintf(&b, ", offpeak_value=%s", formatOptional(d.OffpeakValue))
	fmt.Fprintf(&b, ", offpeak_dollar_value=%s", formatOptional(d.OffpeakDollarValue))
	return b.String()
}

func formatOptional(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%g", *v)
}

// StoredUsage is a usage datum as kept in the local database
type StoredUsage struct {
	ID         int64    `json:"id"`
	ContractID string   `json:"contract_id"`
	Interval   Interval `json:"interval"`
	Published  bool     `json:"published"`
	UsageDatum
}
