package natsadapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// Subjects used by geomeasure.
const (
	SubjectRecordsPrefix = "geomeasure.records."
	SubjectViewsPrefix   = "geomeasure.session."
	SubjectSensorsPrefix = "sensors.location."

	SubjectAllRecords = SubjectRecordsPrefix + ">"
	SubjectAllSensors = SubjectSensorsPrefix + "*"
)

// ViewSubject is the subject carrying session views of screen.
func ViewSubject(screen string) string { return SubjectViewsPrefix + screen }

// SensorSubject is the subject carrying location samples for screen.
func SensorSubject(screen string) string { return SubjectSensorsPrefix + screen }

// RecordSubject is the subject of a record event type.
func RecordSubject(t domain.RecordEventType) string { return SubjectRecordsPrefix + string(t) }

// decodeSample parses a sensor payload. A payload without screen_id takes the
// screen from the last subject token.
func decodeSample(subject string, data []byte) (*domain.SensorSample, error) {
	var p domain.SensorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode sensor sample: %w", err)
	}
	if p.ScreenID == "" {
		if i := strings.LastIndexByte(subject, '.'); i >= 0 && i < len(subject)-1 {
			p.ScreenID = subject[i+1:]
		}
	}
	if p.ScreenID == "" {
		return nil, fmt.Errorf("decode sensor sample: no screen id on %q", subject)
	}
	s := p.Sample()
	return &s, nil
}
