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

package granularity

import "testing"

func TestFixedWidthTruncateAndNext(t *testing.T) {
	const oneMinute = 60_000
	ts := int64(90_123) // 1 minute 30.123 seconds
	if got := Minute.Truncate(ts); got != 60_000 {
		t.Fatalf("Truncate(%d) = %d, want 60000", ts, got)
	}
	if got := Minute.Next(ts); got != 60_000+oneMinute {
		t.Fatalf("Next(%d) = %d, want %d", ts, got, 60_000+oneMinute)
	}
}

func TestFixedWidthTruncateNegative(t *testing.T) {
	ts := int64(-1500)
	got := Second.Truncate(ts)
	if got != -2000 {
		t.Fatalf("Truncate(%d) = %d, want -2000 (floor toward -inf)", ts, got)
	}
}

func TestDayTruncate(t *testing.T) {
	// 2024-03-15T13:45:00Z
	ts := int64(1710510300000)
	want := int64(1710460800000) // 2024-03-15T00:00:00Z
	if got := Day.Truncate(ts); got != want {
		t.Fatalf("Day.Truncate(%d) = %d, want %d", ts, got, want)
	}
	if next := Day.Next(ts); next != want+86400000 {
		t.Fatalf("Day.Next(%d) = %d, want %d", ts, next, want+86400000)
	}
}

func TestWeekTruncatesToMonday(t *testing.T) {
	// 2024-03-15 is a Friday; the preceding Monday is 2024-03-11.
	ts := int64(1710510300000)
	want := int64(1710115200000) // 2024-03-11T00:00:00Z
	if got := Week.Truncate(ts); got != want {
		t.Fatalf("Week.Truncate(%d) = %d, want %d", ts, got, want)
	}
}

func TestMonthAndYearTruncate(t *testing.T) {
	ts := int64(1710510300000) // 2024-03-15T13:45:00Z
	wantMonth := int64(1709251200000) // 2024-03-01T00:00:00Z
	if got := Month.Truncate(ts); got != wantMonth {
		t.Fatalf("Month.Truncate(%d) = %d, want %d", ts, got, wantMonth)
	}
	wantYear := int64(1704067200000) // 2024-01-01T00:00:00Z
	if got := Year.Truncate(ts); got != wantYear {
		t.Fatalf("Year.Truncate(%d) = %d, want %d", ts, got, wantYear)
	}
}

func TestByName(t *testing.T) {
	if _, ok := ByName("not-a-granularity"); ok {
		t.Fatal("ByName should report false for an unrecognized name")
	}
	g, ok := ByName("hour")
	if !ok || g != Hour {
		t.Fatalf("ByName(%q) = %v, %v, want Hour, true", "hour", g, ok)
	}
}
