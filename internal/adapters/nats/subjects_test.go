package natsadapter

import (
	"testing"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

func TestSubjects(t *testing.T) {
	if got := ViewSubject("north"); got != "geomeasure.session.north" {
		t.Errorf("ViewSubject = %q", got)
	}
	if got := SensorSubject("north"); got != "sensors.location.north" {
		t.Errorf("SensorSubject = %q", got)
	}
	if got := RecordSubject(domain.RecordDeleted); got != "geomeasure.records.deleted" {
		t.Errorf("RecordSubject = %q", got)
	}
}

func TestDecodeSample(t *testing.T) {
	s, err := decodeSample("sensors.location.north",
		[]byte(`{"screen_id":"south","lat":12.5,"lng":77.25,"accuracy":4.5,"timestamp":1715003456}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.ScreenID != "south" || s.Point.Lat != 12.5 || s.Point.Lng != 77.25 || s.Accuracy != 4.5 || s.Timestamp != 1715003456 {
		t.Errorf("unexpected sample %+v", s)
	}

	s, err = decodeSample("sensors.location.north", []byte(`{"lat":1,"lng":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.ScreenID != "north" {
		t.Errorf("expected screen from subject, got %q", s.ScreenID)
	}

	if _, err := decodeSample("sensors.location.north", []byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
	if _, err := decodeSample("sensors", []byte(`{"lat":1,"lng":2}`)); err == nil {
		t.Error("expected error without screen id")
	}
}
