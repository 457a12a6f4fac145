package core

import (
	"reflect"
	"testing"
	"time"
)

func TestParseOrdering(t *testing.T) {
	allowed := []string{"deleted_at", "entity_name"}
	tests := []struct {
		val  string
		want []DBOrdering
	}{
		{val: "", want: nil},
		{val: "-deleted_at", want: []DBOrdering{{Field: "deleted_at"}}},
		{val: "entity_name, -deleted_at", want: []DBOrdering{{Field: "entity_name", Ascending: true}, {Field: "deleted_at"}}},
		{val: "password_hash,-lol", want: []DBOrdering{}},
	}
	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			if got := ParseOrdering(tt.val, allowed...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOrdering() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := (DBOrdering{Field: "deleted_at"}).String(); got != "deleted_at DESC" {
		t.Errorf("String() = %q", got)
	}
}

func TestEpochMillis(t *testing.T) {
	if got := EpochMillis(time.Time{}); got != 0 {
		t.Errorf("EpochMillis(zero) = %d", got)
	}
	if got := FromEpochMillis(0); !got.IsZero() {
		t.Errorf("FromEpochMillis(0) = %v", got)
	}

	ts := time.Date(2026, 3, 1, 10, 0, 0, 123_000_000, time.UTC)
	ms := EpochMillis(ts)
	if ms != 1772359200123 {
		t.Errorf("EpochMillis() = %d", ms)
	}
	if got := FromEpochMillis(ms); !got.Equal(ts) || got.Location() != time.UTC {
		t.Errorf("FromEpochMillis() = %v", got)
	}
}

func TestCleanString(t *testing.T) {
	if got := CleanString("  Awa@TTR.test \n", true); got != "awa@ttr.test" {
		t.Errorf("CleanString() = %q", got)
	}
	if got := CleanString(" Awa "); got != "Awa" {
		t.Errorf("CleanString() = %q", got)
	}
}
