package datekey

import (
	"errors"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{
			name:  "rfc 5322 with zone",
			value: "Fri, 09 Aug 2013 00:00:48 +0000",
			want:  time.Date(2013, time.August, 9, 0, 0, 48, 0, time.UTC),
		},
		{
			name:  "zone is ignored",
			value: "Thu, 2 Jan 2020 23:59:01 -0800 (PST)",
			want:  time.Date(2020, time.January, 2, 23, 59, 1, 0, time.UTC),
		},
		{
			name:  "extra spaces",
			value: "Wed,  01  Jan 2020   10:00:00",
			want:  time.Date(2020, time.January, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "no space after comma",
			value: "Mon,06 Jul 2015 08:30:00 +0200",
			want:  time.Date(2015, time.July, 6, 8, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.value, true)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestResolve_Absent(t *testing.T) {
	got, err := Resolve("", false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !got.Equal(Epoch) {
		t.Errorf("Resolve() = %v, want %v", got, Epoch)
	}
}

func TestResolve_Malformed(t *testing.T) {
	for _, value := range []string{
		"",
		"yesterday",
		"09 Aug 2013 00:00:48 +0000", // no weekday shifts every token
		"Fri, 09 Aug 13 00:00:48",
	} {
		_, err := Resolve(value, true)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Resolve(%q) error = %v, want *ParseError", value, err)
			continue
		}
		if perr.Value != value {
			t.Errorf("ParseError.Value = %q, want %q", perr.Value, value)
		}
	}
}
