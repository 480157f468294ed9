package jms

import (
	"encoding/json"
	"fmt"
	"time"
)

type counterInfo struct {
	Download    int64 `json:"bw_counter_b"`
	Total       int64 `json:"monthly_bw_limit_b"`
	ResetMonDay int   `json:"bw_reset_day_of_month"`
}

// Counter converts the provider's JSON usage report into a subscription-userinfo
// value. The quota resets on the reset day of the month after now, at midnight in tz
// (local time when tz is empty).
func Counter(info []byte, tz string, now time.Time) (string, error) {
	var c counterInfo
	if err := json.Unmarshal(info, &c); err != nil {
		return "", fmt.Errorf("decode counter: %w", err)
	}
	if c.ResetMonDay < 1 || c.ResetMonDay > 31 {
		return "", fmt.Errorf("invalid bw_reset_day_of_month: %d", c.ResetMonDay)
	}

	loc := time.Local
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("load timezone %q: %w", tz, err)
		}
		loc = l
	}
	cur := now.In(loc)
	// time.Date normalizes month 13 into January of the next year.
	expire := time.Date(cur.Year(), cur.Month()+1, c.ResetMonDay, 0, 0, 0, 0, loc)

	return fmt.Sprintf("upload=0; download=%d; total=%d; expire=%d", c.Download, c.Total, expire.Unix()), nil
}
