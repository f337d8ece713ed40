// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Name  string `validate:"required,min=3,max=8"`
	Count int    `validate:"min=2,max=34"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		req     sampleRequest
		wantErr string // substring of the rendered message, "" for valid
	}{
		{"valid", sampleRequest{Name: "alice", Count: 4}, ""},
		{"missing name", sampleRequest{Count: 4}, "Name is required"},
		{"name too short", sampleRequest{Name: "ab", Count: 4}, "Name must be at least 3 characters"},
		{"name too long", sampleRequest{Name: "abcdefghi", Count: 4}, "Name must be at most 8 characters"},
		{"count too small", sampleRequest{Name: "alice", Count: 1}, "Count must be at least 2"},
		{"count too large", sampleRequest{Name: "alice", Count: 35}, "Count must be at most 34"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateStructRuneCounting(t *testing.T) {
	// min/max on strings count runes; four multibyte characters satisfy
	// min=3 even though the byte length is larger than max=8.
	req := sampleRequest{Name: "αβγδ", Count: 4}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("ValidateStruct() = %v, want nil", err)
	}
}

func TestValidateStructCollectsAllFields(t *testing.T) {
	req := sampleRequest{Name: "", Count: 0}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}
	if len(err.Fields) != 2 {
		t.Fatalf("got %d field errors, want 2: %v", len(err.Fields), err)
	}
}
