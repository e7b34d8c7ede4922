package utils

import "testing"

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"0800000000", true},
		{"+2348000000000", true},
		{"0803 123 4567", true},
		{"0803-123-4567", true},
		{"", false},
		{"12345", false}, // too short
		{"1234567890123456", false},
		{"0800a00000", false},
		{"MTN", false},
		{"+", false},
	}

	for _, tt := range tests {
		if got := IsValidPhone(tt.input); got != tt.valid {
			t.Errorf("IsValidPhone(%q) = %v; want %v", tt.input, got, tt.valid)
		}
	}
}
