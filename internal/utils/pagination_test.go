package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 20, 20},          // empty -> default
		{"3", 1, 3},           // valid
		{"-7", 0, -7},         // negative passes through
		{"007", 1, 7},         // leading zeros
		{"two", 20, 20},       // non-numeric -> default
		{" 3", 20, 20},        // no trimming
		{"92233720368547758080", 1, 1}, // overflow -> default
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}
