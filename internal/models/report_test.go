// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package models

import (
	"errors"
	"testing"
	"time"
)

func TestReportMessageValidate(t *testing.T) {
	valid := ReportMessage{
		SubjectID:   "tenant-a",
		SourceID:    "prop-1",
		GeneratedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name      string
		mutate    func(*ReportMessage)
		wantField string
	}{
		{name: "valid", mutate: func(m *ReportMessage) {}},
		{
			name:      "missing subject",
			mutate:    func(m *ReportMessage) { m.SubjectID = "" },
			wantField: "subject_id",
		},
		{
			name:      "missing source",
			mutate:    func(m *ReportMessage) { m.SourceID = "" },
			wantField: "source_id",
		},
		{
			name:      "zero timestamp",
			mutate:    func(m *ReportMessage) { m.GeneratedAt = time.Time{} },
			wantField: "generated_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid
			tt.mutate(&msg)
			err := msg.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestEnsureSchemaVersion(t *testing.T) {
	msg := ReportMessage{}
	msg.EnsureSchemaVersion()
	if msg.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", msg.SchemaVersion, SchemaVersion)
	}

	msg.SchemaVersion = 42
	msg.EnsureSchemaVersion()
	if msg.SchemaVersion != 42 {
		t.Errorf("SchemaVersion = %d, want existing value preserved", msg.SchemaVersion)
	}
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "raw", got: RawRecord{}.TableName(), want: "raw_records"},
		{name: "normalized", got: NormalizedRecord{}.TableName(), want: "normalized_records"},
		{name: "ledger", got: RunLedgerEntry{}.TableName(), want: "run_ledger"},
		{name: "credentials", got: Credential{}.TableName(), want: "credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("TableName() = %q, want %q", tt.got, tt.want)
			}
		})
	}
}
