package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/pkg/geospatial"
	"github.com/samirrijal/geomeasure/internal/pkg/readout"
)

const contentTypeGeoJSON = "application/geo+json"

// recordGeometry maps a record onto a GeoJSON geometry. Field rings are closed
// explicitly; the stored geometry never repeats its first point.
func recordGeometry(rec *domain.AnnotationRecord) orb.Geometry {
	coords := make([]orb.Point, len(rec.Geometry))
	for i, p := range rec.Geometry {
		coords[i] = orb.Point{p.Lng, p.Lat}
	}

	switch {
	case rec.Kind == domain.KindMarker && len(coords) > 0:
		return coords[0]
	case rec.Kind == domain.KindField && len(coords) >= 3:
		ring := append(orb.Ring(coords), coords[0])
		return orb.Polygon{ring}
	default:
		return orb.LineString(coords)
	}
}

// recordFeature converts a record into a GeoJSON feature carrying its metadata
// and measurement.
func recordFeature(rec *domain.AnnotationRecord) *geojson.Feature {
	f := geojson.NewFeature(recordGeometry(rec))
	f.ID = rec.ID
	f.Properties["kind"] = rec.Kind
	f.Properties["title"] = rec.Title
	f.Properties["group"] = rec.Group.Name
	f.Properties["color"] = rec.Group.Color
	f.Properties["created_at"] = rec.CreatedAt
	f.Properties["updated_at"] = rec.UpdatedAt
	if rec.Description != "" {
		f.Properties["description"] = rec.Description
	}
	if rec.PhotoRef != nil {
		f.Properties["photo_ref"] = *rec.PhotoRef
	}

	m, p := geospatial.Measure(rec.Kind, rec.Geometry)
	if m = readout.Annotate(m); m != nil {
		f.Properties["measurement"] = m
	}
	if p = readout.Annotate(p); p != nil {
		f.Properties["perimeter"] = p
	}
	return f
}

// RecordGeoJSONHandler exports one record as a GeoJSON feature.
func RecordGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := deps.Records.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		data, err := recordFeature(rec).MarshalJSON()
		if err != nil {
			return errFrom(c, err)
		}
		c.Set(fiber.HeaderContentType, contentTypeGeoJSON)
		return c.Send(data)
	}
}

// RecordsGeoJSONHandler exports every record as a feature collection.
func RecordsGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		recs, err := deps.Records.List(c.UserContext())
		if err != nil {
			return errFrom(c, err)
		}

		fc := geojson.NewFeatureCollection()
		for i := range recs {
			fc.Append(recordFeature(&recs[i]))
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			return errFrom(c, err)
		}
		c.Set(fiber.HeaderContentType, contentTypeGeoJSON)
		return c.Send(data)
	}
}
