// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package granularity supplies the concrete time-bucketing granularities
// the ingestion path truncates row timestamps against. The index package
// treats Granularity purely as an external collaborator interface; this
// package ships the fixed enumeration the original system shipped, rather
// than only the abstract notion the distilled design left behind.
//
// This is a fresh implementation rather than an adaptation of the
// teacher's date package: the copy of that package in this pack carries a
// retrieval artifact (duplicate MarshalJSON/UnmarshalJSON definitions
// across two files, and a Parse that calls a helper that doesn't exist in
// either file), so it cannot compile as-is. The millis-since-epoch
// representation and the Truncate/Next split are kept in its spirit;
// everything else here is new.
package granularity

import "time"

// Granularity truncates and advances epoch-millisecond timestamps to a
// fixed-width or calendar bucket boundary.
type Granularity interface {
	// Truncate floors millis to the start of its bucket.
	Truncate(millis int64) int64
	// Next returns the start of the bucket immediately following the one
	// containing millis.
	Next(millis int64) int64
}

type fixedWidth int64

// Truncate floors millis to the nearest multiple of the bucket width.
func (w fixedWidth) Truncate(millis int64) int64 {
	if millis >= 0 {
		return millis - millis%int64(w)
	}
	// floor toward negative infinity for pre-epoch timestamps
	r := millis % int64(w)
	if r == 0 {
		return millis
	}
	return millis - int64(w) - r
}

// Next returns the start of the following fixed-width bucket.
func (w fixedWidth) Next(millis int64) int64 {
	return w.Truncate(millis) + int64(w)
}

const (
	milli  = int64(1)
	second = 1000 * milli
	minute = 60 * second
	hour   = 60 * minute
	day    = 24 * hour
)

// None performs no truncation: every distinct millisecond is its own
// bucket.
var None Granularity = fixedWidth(milli)

// Second truncates to whole seconds.
var Second Granularity = fixedWidth(second)

// Minute truncates to whole minutes.
var Minute Granularity = fixedWidth(minute)

// FiveMinute truncates to 5 minute buckets.
var FiveMinute Granularity = fixedWidth(5 * minute)

// TenMinute truncates to 10 minute buckets.
var TenMinute Granularity = fixedWidth(10 * minute)

// FifteenMinute truncates to 15 minute buckets.
var FifteenMinute Granularity = fixedWidth(15 * minute)

// ThirtyMinute truncates to 30 minute buckets.
var ThirtyMinute Granularity = fixedWidth(30 * minute)

// Hour truncates to whole hours.
var Hour Granularity = fixedWidth(hour)

// SixHour truncates to 6 hour buckets.
var SixHour Granularity = fixedWidth(6 * hour)

// Day truncates to whole UTC days.
var Day Granularity = fixedWidth(day)

// Week truncates to whole UTC weeks, anchored to Monday (ISO 8601), since
// a fixed 7*day-wide bucket would float relative to weekday boundaries
// depending on the epoch.
var Week Granularity = isoWeek{}

type isoWeek struct{}

func (isoWeek) Truncate(millis int64) int64 {
	t := time.UnixMilli(millis).UTC()
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	y, m, d := t.Date()
	monday := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
	return monday.UnixMilli()
}

func (w isoWeek) Next(millis int64) int64 {
	return w.Truncate(millis) + 7*day
}

// Month truncates to the first instant of the calendar month, in UTC.
var Month Granularity = calendarMonth{}

type calendarMonth struct{}

func (calendarMonth) Truncate(millis int64) int64 {
	t := time.UnixMilli(millis).UTC()
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func (c calendarMonth) Next(millis int64) int64 {
	t := time.UnixMilli(c.Truncate(millis)).UTC()
	return t.AddDate(0, 1, 0).UnixMilli()
}

// Year truncates to the first instant of the calendar year, in UTC.
var Year Granularity = calendarYear{}

type calendarYear struct{}

func (calendarYear) Truncate(millis int64) int64 {
	t := time.UnixMilli(millis).UTC()
	return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func (c calendarYear) Next(millis int64) int64 {
	t := time.UnixMilli(c.Truncate(millis)).UTC()
	return t.AddDate(1, 0, 0).UnixMilli()
}

// ByName resolves one of the built-in granularities by its configuration
// name, for index.LoadSchema. The zero value ("", unrecognized) reports
// ok=false.
func ByName(name string) (Granularity, bool) {
	switch name {
	case "none":
		return None, true
	case "second":
		return Second, true
	case "minute":
		return Minute, true
	case "five_minute":
		return FiveMinute, true
	case "ten_minute":
		return TenMinute, true
	case "fifteen_minute":
		return FifteenMinute, true
	case "thirty_minute":
		return ThirtyMinute, true
	case "hour":
		return Hour, true
	case "six_hour":
		return SixHour, true
	case "day":
		return Day, true
	case "week":
		return Week, true
	case "month":
		return Month, true
	case "year":
		return Year, true
	default:
		return nil, false
	}
}
