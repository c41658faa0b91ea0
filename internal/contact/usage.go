package contact

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/jgoulah/contactenergy/pkg/models"
)

// LatestUsage returns the most recent monthly record for the current month
func (c *Client) LatestUsage(ctx context.Context) (models.UsageDatum, error) {
	const op = "latest usage"

	today := truncateDay(c.now())
	start, end := MonthRange(today)
	if start.After(today) {
		return models.UsageDatum{}, newError(ErrInvalidRange, op, "start date %s is in the future", start.Format(dateLayout))
	}

	data, err := c.fetchUsage(ctx, op, models.Monthly, start, end)
	if err != nil {
		return models.UsageDatum{}, err
	}
	if len(data) == 0 {
		return models.UsageDatum{}, newError(ErrDataUnavailable, op, "no monthly usage between %s and %s", start.Format(dateLayout), end.Format(dateLayout))
	}

	SortDescending(data)
	return data[0], nil
}

// Usage returns all records between start and end, newest first
func (c *Client) Usage(ctx context.Context, start, end time.Time, interval models.Interval) ([]models.UsageDatum, error) {
	const op = "usage"

	if !interval.Valid() {
		return nil, newError(ErrInvalidRange, op, "unknown interval %q", interval)
	}
	if truncateDay(start).After(truncateDay(end)) {
		return nil, newError(ErrInvalidRange, op, "start date %s is after end date %s", start.Format(dateLayout), end.Format(dateLayout))
	}

	data, err := c.fetchUsage(ctx, op, interval, start, end)
	if err != nil {
		return nil, err
	}

	SortDescending(data)
	return data, nil
}

// HourlyUsage returns the hourly records for one day, in chronological order
func (c *Client) HourlyUsage(ctx context.Context, day time.Time) ([]models.UsageDatum, error) {
	// The API only looks at `from` for hourly data; the website sends `to` as well.
	data, err := c.fetchUsage(ctx, "hourly usage", models.Hourly, day, day)
	if err != nil {
		return nil, err
	}

	SortAscending(data)
	return data, nil
}

// LatestHourlyUsage returns the hourly records for the most recent day with data.
// Hourly data lags by a few days, so the current month is queried at daily
// granularity first to find that day.
func (c *Client) LatestHourlyUsage(ctx context.Context) ([]models.UsageDatum, error) {
	const op = "latest hourly usage"

	start, end := MonthRange(truncateDay(c.now()))
	daily, err := c.fetchUsage(ctx, op, models.Daily, start, end)
	if err != nil {
		return nil, err
	}
	if len(daily) == 0 {
		return nil, newError(ErrDataUnavailable, op, "no daily usage between %s and %s", start.Format(dateLayout), end.Format(dateLayout))
	}

	latest := daily[0].Timestamp
	for _, d := range daily[1:] {
		if d.Timestamp.After(latest) {
			latest = d.Timestamp
		}
	}
	c.logger.Debug("found latest day with usage", zap.String("day", latest.Format(dateLayout)))

	hourly, err := c.fetchUsage(ctx, op, models.Hourly, latest, latest)
	if err != nil {
		return nil, err
	}

	SortAscending(hourly)
	return hourly, nil
}

// fetchUsage is the single usage query every retrieval mode goes through
func (c *Client) fetchUsage(ctx context.Context, op string, interval models.Interval, from, to time.Time) ([]models.UsageDatum, error) {
	c.mu.RLock()
	accountID, contractID := c.accountID, c.contractID
	c.mu.RUnlock()

	if accountID == "" || contractID == "" {
		return nil, newError(ErrInvalidState, op, "account and contract are not resolved")
	}

	query := url.Values{}
	query.Set("ba", accountID)
	query.Set("interval", string(interval))
	query.Set("from", from.Format(dateLayout))
	query.Set("to", to.Format(dateLayout))
	reqURL := c.endpoint(c.variant.UsagePath+"/"+url.PathEscape(contractID), query)

	var raw []json.RawMessage
	if err := c.fetchJSON(ctx, op, c.variant.UsageMethod, reqURL, &raw); err != nil {
		return nil, err
	}

	data, err := ParseUsage(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched usage", zap.String("interval", string(interval)), zap.Int("records", len(data)))
	return data, nil
}

// SortDescending orders records newest first; equal timestamps keep their input order
func SortDescending(data []models.UsageDatum) {
	slices.SortStableFunc(data, func(a, b models.UsageDatum) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

// SortAscending orders records oldest first; equal timestamps keep their input order
func SortAscending(data []models.UsageDatum) {
	slices.SortStableFunc(data, func(a, b models.UsageDatum) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
