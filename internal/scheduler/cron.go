// Copyright 2025 The Aimee Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cron is a parsed 5-field cron expression. Field sets are bitmasks:
// bit N set means value N matches.
type Cron struct {
	minute uint64 // 0-59
	hour   uint32 // 0-23
	dom    uint32 // 1-31
	month  uint16 // 1-12
	dow    uint8  // 0-6, 0 = Sunday
}

// ParseCron parses "minute hour day-of-month month day-of-week".
// Fields accept wildcards, single values, ranges, comma lists, and
// steps ("*/15", "1-10/2").
func ParseCron(expr string) (*Cron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	minute, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("cron: minute: %w", err)
	}
	hour, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("cron: hour: %w", err)
	}
	dom, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("cron: day-of-month: %w", err)
	}
	month, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("cron: month: %w", err)
	}
	dow, err := parseField(fields[4], 0, 6)
	if err != nil {
		return nil, fmt.Errorf("cron: day-of-week: %w", err)
	}

	return &Cron{
		minute: minute,
		hour:   uint32(hour),
		dom:    uint32(dom),
		month:  uint16(month),
		dow:    uint8(dow),
	}, nil
}

// parseField builds the bitmask for one cron field.
func parseField(field string, lo, hi int) (uint64, error) {
	var mask uint64

	for _, part := range strings.Split(field, ",") {
		step := 1
		if idx := strings.Index(part, "/"); idx != -1 {
			n, err := strconv.Atoi(part[idx+1:])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step %q", part[idx+1:])
			}
			step = n
			part = part[:idx]
		}

		start, end := lo, hi
		switch {
		case part == "*":
			// full range
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			var err error
			if start, err = strconv.Atoi(bounds[0]); err != nil {
				return 0, fmt.Errorf("bad range start %q", bounds[0])
			}
			if end, err = strconv.Atoi(bounds[1]); err != nil {
				return 0, fmt.Errorf("bad range end %q", bounds[1])
			}
		default:
			n, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", part)
			}
			start, end = n, n
		}

		if start < lo || end > hi || start > end {
			return 0, fmt.Errorf("range %d-%d outside [%d,%d]", start, end, lo, hi)
		}

		for v := start; v <= end; v += step {
			mask |= 1 << uint(v)
		}
	}

	return mask, nil
}

func bit(mask uint64, v int) bool {
	return mask&(1<<uint(v)) != 0
}

// Next returns the first time strictly after from that matches the
// expression, or the zero time if nothing matches within four years.
func (c *Cron) Next(from time.Time) time.Time {
	t := from.Truncate(time.Minute).Add(time.Minute)
	limit := from.AddDate(4, 0, 0)

	for t.Before(limit) {
		if !bit(uint64(c.month), int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !bit(uint64(c.dom), t.Day()) || !bit(uint64(c.dow), int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !bit(uint64(c.hour), t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !bit(c.minute, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}

	return time.Time{}
}
