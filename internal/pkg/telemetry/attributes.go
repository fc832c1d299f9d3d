package telemetry

// Span attribute keys.
const (
	AttrScreen = "geomeasure.screen"
	AttrKind   = "geomeasure.kind"
	AttrRecord = "geomeasure.record_id"
	AttrEvent  = "geomeasure.event"
)
