/*
Copyright © 2024 the nemodriver authors.
This file is part of nemodriver.

nemodriver is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

nemodriver is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with nemodriver.  If not, see <http://www.gnu.org/licenses/>.
*/

package nemodriver

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

// ComputeNTimesteps returns the number of model time steps of
// timestep seconds needed to cover the interval from start to end.
func ComputeNTimesteps(start, end time.Time, timestep float64) (int, error) {
	if !(timestep > 0) || math.IsInf(timestep, 0) {
		return 0, fmt.Errorf("nemodriver: invalid time step %g s", timestep)
	}
	if end.Before(start) {
		return 0, fmt.Errorf("nemodriver: end date %s is before start date %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	// time.Duration saturates beyond about 292 years.
	seconds := float64(end.Unix()-start.Unix()) + float64(end.Nanosecond()-start.Nanosecond())/1e9
	return int(math.Ceil(seconds / timestep)), nil
}

// compactDateLayouts are tried when cast cannot parse a date.
var compactDateLayouts = []string{
	"20060102",
	"20060102T150405",
	"20060102150405",
	"2006-01-02T15",
	"2006/01/02",
	"2006/01/02 15:04:05",
}

// ParseDate parses a free-form date such as "2016-01-01", "20160101"
// or "2016-01-01T12:00:00Z". Dates without a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := cast.ToTimeE(s)
	if err == nil {
		return t, nil
	}
	for _, layout := range compactDateLayouts {
		if t, err2 := time.Parse(layout, s); err2 == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("nemodriver: parsing date %q: %w", s, err)
}
