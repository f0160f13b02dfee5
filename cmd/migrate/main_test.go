package main

import "testing"

func TestNormalizeDirection(t *testing.T) {
	cases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"up", "up", false},
		{" UP ", "up", false},
		{"down", "down", false},
		{"Status", "status", false},
		{"sideways", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := normalizeDirection(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("normalizeDirection(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeDirection(%q): unexpected error %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeDirection(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
