package s3

import "testing"

func TestRosterKey(t *testing.T) {
	tests := []struct {
		prefix, company, ref, file string
		want                       string
	}{
		{"rosters", "c1", "BRN-1", "staff.csv", "rosters/c1/BRN-1/staff.csv"},
		{"", "c1", "BRN-1", "staff.xlsx", "c1/BRN-1/staff.xlsx"},
		{"rosters", "c1", "BRN-1", "../../etc/passwd", "rosters/c1/BRN-1/passwd"},
	}
	for _, tt := range tests {
		if got := RosterKey(tt.prefix, tt.company, tt.ref, tt.file); got != tt.want {
			t.Errorf("RosterKey(%q, %q, %q, %q) = %q, want %q", tt.prefix, tt.company, tt.ref, tt.file, got, tt.want)
		}
	}
}
