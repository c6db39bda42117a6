// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package schedule

import (
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "all wildcards", expr: "* * * * *"},
		{name: "hourly on the hour", expr: "0 * * * *"},
		{name: "every ten minutes", expr: "*/10 * * * *"},
		{name: "monday six am", expr: "0 6 * * 1"},
		{name: "range field", expr: "0 9-17 * * *"},
		{name: "list field", expr: "0,15,30,45 * * * *"},
		{name: "stepped range", expr: "0-30/10 * * * *"},
		{name: "sunday as seven", expr: "0 0 * * 7"},
		{name: "too few fields", expr: "0 * * *", wantErr: true},
		{name: "too many fields", expr: "0 * * * * *", wantErr: true},
		{name: "minute out of range", expr: "60 * * * *", wantErr: true},
		{name: "hour out of range", expr: "0 24 * * *", wantErr: true},
		{name: "month out of range", expr: "0 0 1 13 *", wantErr: true},
		{name: "garbage value", expr: "abc * * * *", wantErr: true},
		{name: "zero step", expr: "*/0 * * * *", wantErr: true},
		{name: "inverted range", expr: "30-10 * * * *", wantErr: true},
		{name: "empty", expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCron(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestParseCronSundayNormalization(t *testing.T) {
	expr, err := ParseCron("0 0 * * 7")
	if err != nil {
		t.Fatalf("ParseCron() error = %v", err)
	}
	if len(expr.DaysOfWeek) != 1 || expr.DaysOfWeek[0] != 0 {
		t.Errorf("DaysOfWeek = %v, want [0]", expr.DaysOfWeek)
	}

	// 0 and 7 in a list collapse into a single Sunday entry.
	expr, err = ParseCron("0 0 * * 0,7")
	if err != nil {
		t.Fatalf("ParseCron() error = %v", err)
	}
	if len(expr.DaysOfWeek) != 1 || expr.DaysOfWeek[0] != 0 {
		t.Errorf("DaysOfWeek = %v, want [0]", expr.DaysOfWeek)
	}
}

func TestNextRun(t *testing.T) {
	// 2026-03-02 is a Monday.
	base := time.Date(2026, 3, 2, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		name  string
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "hourly on the hour",
			expr:  "0 * * * *",
			after: base,
			want:  time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		},
		{
			name:  "every ten minutes rounds up",
			expr:  "*/10 * * * *",
			after: base,
			want:  time.Date(2026, 3, 2, 10, 40, 0, 0, time.UTC),
		},
		{
			name:  "next monday six am wraps a week",
			expr:  "0 6 * * 1",
			after: base,
			want:  time.Date(2026, 3, 9, 6, 0, 0, 0, time.UTC),
		},
		{
			name:  "strictly after, never the same minute",
			expr:  "30 10 * * *",
			after: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "first of month",
			expr:  "0 0 1 * *",
			after: base,
			want:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseCron(tt.expr)
			if err != nil {
				t.Fatalf("ParseCron(%q) error = %v", tt.expr, err)
			}

			got := expr.NextRun(tt.after, nil)
			if !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunIsPure(t *testing.T) {
	expr, err := ParseCron("*/15 * * * *")
	if err != nil {
		t.Fatalf("ParseCron() error = %v", err)
	}

	after := time.Date(2026, 3, 2, 10, 7, 0, 0, time.UTC)
	first := expr.NextRun(after, nil)
	for i := 0; i < 10; i++ {
		if got := expr.NextRun(after, nil); !got.Equal(first) {
			t.Fatalf("NextRun() not deterministic: got %v, want %v", got, first)
		}
	}
}

func TestNextOccurrence(t *testing.T) {
	after := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	got, err := NextOccurrence("0 12 * * *", after, "")
	if err != nil {
		t.Fatalf("NextOccurrence() error = %v", err)
	}
	want := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextOccurrence() = %v, want %v", got, want)
	}

	if _, err := NextOccurrence("bad", after, ""); err == nil {
		t.Error("NextOccurrence() with invalid expression, want error")
	}

	if _, err := NextOccurrence("0 12 * * *", after, "Not/AZone"); err == nil {
		t.Error("NextOccurrence() with invalid timezone, want error")
	}
}

func TestNextOccurrenceTimezone(t *testing.T) {
	// 10:30 UTC is 05:30 in New York (EST, early March before DST).
	after := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	got, err := NextOccurrence("0 6 * * *", after, "America/New_York")
	if err != nil {
		t.Fatalf("NextOccurrence() error = %v", err)
	}

	loc, _ := time.LoadLocation("America/New_York")
	want := time.Date(2026, 3, 2, 6, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextOccurrence() = %v, want %v", got, want)
	}
}
