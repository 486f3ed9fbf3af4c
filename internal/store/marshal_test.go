package store

import (
	"testing"
	"time"

	"github.com/roach88/libcheck/internal/status"
)

func TestMarshalFailures_Canonical(t *testing.T) {
	got, err := marshalFailures([]status.Failure{
		{Seq: 2, Kind: status.KindHarness, Message: "fan-out: launch worker 3 of 4: <busy>"},
	})
	if err != nil {
		t.Fatalf("marshalFailures() failed: %v", err)
	}
	want := `[{"kind":"harness","message":"fan-out: launch worker 3 of 4: <busy>","seq":2}]`
	if got != want {
		t.Errorf("marshalFailures() = %s, want %s", got, want)
	}

	empty, err := marshalFailures(nil)
	if err != nil || empty != "[]" {
		t.Errorf("marshalFailures(nil) = %q, %v", empty, err)
	}
}

func TestUnmarshalFailures(t *testing.T) {
	got, err := unmarshalFailures(`[{"kind":"assertion","message":"m","seq":7}]`)
	if err != nil {
		t.Fatalf("unmarshalFailures() failed: %v", err)
	}
	if len(got) != 1 || got[0] != (status.Failure{Seq: 7, Kind: status.KindAssertion, Message: "m"}) {
		t.Errorf("unmarshalFailures() = %+v", got)
	}

	if _, err := unmarshalFailures("{not json"); err == nil {
		t.Error("expected error for malformed failures")
	}
}

func TestUnixNano(t *testing.T) {
	if toUnixNano(time.Time{}) != 0 || !fromUnixNano(0).IsZero() {
		t.Error("zero time must map to 0 and back")
	}
	ts := time.Date(2025, 5, 6, 7, 8, 9, 10, time.UTC)
	if got := fromUnixNano(toUnixNano(ts)); !got.Equal(ts) {
		t.Errorf("round trip = %v, want %v", got, ts)
	}
}
