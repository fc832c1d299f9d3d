package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

const trackYAML = `
screen_id: plot-7
interval: 5ms
samples:
  - {lat: 43.2630, lng: -2.9350, accuracy: 4}
  - {lat: 43.2632, lng: -2.9348}
  - {screen_id: other, lat: 43.2634, lng: -2.9346}
`

func TestParseTrack(t *testing.T) {
	track, err := parseTrack([]byte(trackYAML), "", 0)
	if err != nil {
		t.Fatalf("parseTrack: %v", err)
	}
	if track.Interval != 5*time.Millisecond {
		t.Errorf("interval = %v, want 5ms", track.Interval)
	}
	if len(track.Samples) != 3 {
		t.Fatalf("samples = %d, want 3", len(track.Samples))
	}
	if track.Samples[0].ScreenID != "plot-7" || track.Samples[0].Accuracy != 4 {
		t.Errorf("first sample = %+v", track.Samples[0])
	}
	if track.Samples[2].ScreenID != "other" {
		t.Errorf("explicit screen overwritten: %+v", track.Samples[2])
	}
}

func TestParseTrack_Overrides(t *testing.T) {
	track, err := parseTrack([]byte(trackYAML), "kiosk", time.Second)
	if err != nil {
		t.Fatalf("parseTrack: %v", err)
	}
	if track.Interval != time.Second {
		t.Errorf("interval = %v, want 1s", track.Interval)
	}
	for i, s := range track.Samples {
		if s.ScreenID != "kiosk" {
			t.Errorf("sample %d screen = %q, want kiosk", i, s.ScreenID)
		}
	}
}

func TestParseTrack_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", "screen_id: a\nsamples: []\n"},
		{"no screen", "samples:\n  - {lat: 1, lng: 1}\n"},
		{"bad latitude", "screen_id: a\nsamples:\n  - {lat: 95, lng: 1}\n"},
		{"not yaml", "samples: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseTrack([]byte(tt.in), "", 0); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReplay(t *testing.T) {
	track, err := parseTrack([]byte(trackYAML), "", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	var got []domain.SensorSample
	publish := func(_ context.Context, s *domain.SensorSample) error {
		got = append(got, *s)
		return nil
	}
	clock := time.UnixMilli(1_700_000_000_000)
	now := func() time.Time { return clock }

	sent, err := replay(context.Background(), track, publish, now)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if sent != 3 || len(got) != 3 {
		t.Fatalf("sent = %d, published = %d, want 3", sent, len(got))
	}
	if got[1].Point.Lat != 43.2632 || got[1].ScreenID != "plot-7" {
		t.Errorf("second sample = %+v", got[1])
	}
	if got[0].Timestamp != 1_700_000_000_000 {
		t.Errorf("timestamp = %d", got[0].Timestamp)
	}
}

func TestReplay_StopsOnPublishError(t *testing.T) {
	track, err := parseTrack([]byte(trackYAML), "", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("broker down")
	calls := 0
	publish := func(context.Context, *domain.SensorSample) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}

	sent, err := replay(context.Background(), track, publish, time.Now)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want broker error", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
}

func TestReplay_Cancelled(t *testing.T) {
	track, err := parseTrack([]byte(trackYAML), "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	publish := func(context.Context, *domain.SensorSample) error {
		cancel()
		return nil
	}

	sent, err := replay(ctx, track, publish, time.Now)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
}
