package http

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/core/usecases"
	"github.com/samirrijal/geomeasure/internal/pkg/geospatial"
	"github.com/samirrijal/geomeasure/internal/pkg/readout"
)

// maxQueryPoints bounds the points accepted by the stateless measuring endpoints.
const maxQueryPoints = 10000

// ---- Records ----

// ListRecordsHandler lists records newest first, optionally filtered by kind and group.
func ListRecordsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f usecases.RecordFilter
		if k := c.Query("kind"); k != "" {
			kind, err := domain.ParseAnnotationKind(k)
			if err != nil {
				return errBadRequest(c, "kind must be one of marker, distance, field")
			}
			f.Kind = kind
		}
		f.Group = strings.TrimSpace(c.Query("group"))

		recs, err := deps.Records.Find(c.UserContext(), f)
		if err != nil {
			return errFrom(c, err)
		}

		offset, limit := pageParams(c)
		page, pg := paginate(recs, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetRecordHandler returns a single record.
func GetRecordHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := deps.Records.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(rec)
	}
}

// recordUpdateRequest is the body of PUT /v1/records/:id. Without geometry only
// the form fields change.
type recordUpdateRequest struct {
	domain.Metadata
	Geometry []domain.GeoPoint `json:"geometry,omitempty"`
}

// UpdateRecordHandler edits a record outside of a capture session.
func UpdateRecordHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var req recordUpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		ctx := c.UserContext()
		if req.Geometry == nil {
			rec, err := deps.Records.UpdateMetadata(ctx, id, req.Metadata)
			if err != nil {
				return errFrom(c, err)
			}
			return c.JSON(rec)
		}

		meta, err := req.Metadata.Normalize()
		if err != nil {
			return errFrom(c, err)
		}
		rec, err := deps.Records.Get(ctx, id)
		if err != nil {
			return errFrom(c, err)
		}
		rec.Geometry = req.Geometry
		rec.Title = meta.Title
		rec.Description = meta.Description
		rec.Group = meta.Group
		rec.PhotoRef = meta.PhotoRef
		if err := deps.Records.Update(ctx, id, rec); err != nil {
			return errFrom(c, err)
		}
		if rec, err = deps.Records.Get(ctx, id); err != nil {
			return errFrom(c, err)
		}
		return c.JSON(rec)
	}
}

// DeleteRecordHandler removes a record. Deleting a missing record succeeds.
func DeleteRecordHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Records.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFrom(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Groups ----

// ListGroupsHandler returns the group catalogue.
func ListGroupsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		groups, err := deps.Groups.List(c.UserContext())
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(groups)
	}
}

// CreateGroupHandler adds or recolors a group.
func CreateGroupHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var g domain.Group
		if err := c.BodyParser(&g); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		g, err := deps.Groups.Create(c.UserContext(), g)
		if err != nil {
			return errFrom(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(g)
	}
}

// DeleteGroupHandler deletes a group and reports how many records moved to the
// default group.
func DeleteGroupHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
		moved, err := deps.Groups.Delete(c.UserContext(), name)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(fiber.Map{"deleted": name, "reassigned": moved})
	}
}

// ---- Session ----

type kindRequest struct {
	Kind string `json:"kind"`
}

type pointRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type gpsRequest struct {
	Enabled bool `json:"enabled"`
}

// saveResponse carries the stored record and the session view after a save.
type saveResponse struct {
	Record *domain.AnnotationRecord `json:"record"`
	View   domain.SessionView       `json:"view"`
}

// screenCommand resolves the screen of the request and runs fn against it.
func screenCommand(deps *Dependencies, fn func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := deps.Screens.Screen(c.Params("screen"))
		if err != nil {
			return errFrom(c, err)
		}
		view, err := fn(c, o)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(view)
	}
}

// GetSessionHandler returns the current session view of a screen. Reading never
// opens a screen.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Screens.View(c.Params("screen"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(view)
	}
}

// BeginHandler starts capturing a new annotation.
func BeginHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		kind, err := parseKindBody(c)
		if err != nil {
			return domain.SessionView{}, err
		}
		return o.BeginNew(c.UserContext(), kind)
	})
}

// SwitchHandler abandons the current capture and starts one of another kind.
func SwitchHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		kind, err := parseKindBody(c)
		if err != nil {
			return domain.SessionView{}, err
		}
		return o.SwitchMode(c.UserContext(), kind)
	})
}

// EditHandler loads a saved record into the capture session.
func EditHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		return o.BeginEdit(c.UserContext(), c.Params("id"))
	})
}

// AddPointHandler appends a tapped point.
func AddPointHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		var req pointRequest
		if err := c.BodyParser(&req); err != nil {
			return domain.SessionView{}, &domain.ValidationError{Field: "body", Message: "invalid request body"}
		}
		if req.Lat == nil || req.Lng == nil {
			return domain.SessionView{}, &domain.ValidationError{Field: "point", Message: "lat and lng are required"}
		}
		return o.AddPoint(c.UserContext(), domain.GeoPoint{Lat: *req.Lat, Lng: *req.Lng})
	})
}

// GPSHandler toggles sensor tracking.
func GPSHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		var req gpsRequest
		if err := c.BodyParser(&req); err != nil {
			return domain.SessionView{}, &domain.ValidationError{Field: "body", Message: "invalid request body"}
		}
		return o.SetGPS(c.UserContext(), req.Enabled)
	})
}

// UndoHandler removes the last point.
func UndoHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		return o.Undo(c.UserContext())
	})
}

// ClearHandler removes every point.
func ClearHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		return o.Clear(c.UserContext())
	})
}

// CancelHandler discards the capture or closes the preview.
func CancelHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		return o.Cancel(c.UserContext())
	})
}

// RequestSaveHandler freezes the geometry for the save form.
func RequestSaveHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		return o.RequestSave(c.UserContext())
	})
}

// ResumeHandler dismisses the save form and continues capturing.
func ResumeHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		return o.Resume(c.UserContext())
	})
}

// SaveHandler persists the frozen geometry with the submitted form fields.
func SaveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := deps.Screens.Screen(c.Params("screen"))
		if err != nil {
			return errFrom(c, err)
		}
		var md domain.Metadata
		if err := c.BodyParser(&md); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		res, view, err := o.Save(c.UserContext(), md)
		if err != nil {
			return errFrom(c, err)
		}

		status := fiber.StatusOK
		if res.Created {
			status = fiber.StatusCreated
		}
		c.Location("/v1/records/" + res.Record.ID)
		return c.Status(status).JSON(saveResponse{Record: res.Record, View: view})
	}
}

// PreviewHandler shows a saved record read-only.
func PreviewHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		return o.Preview(c.UserContext(), c.Params("id"))
	})
}

// ClosePreviewHandler leaves preview mode.
func ClosePreviewHandler(deps *Dependencies) fiber.Handler {
	return screenCommand(deps, func(c *fiber.Ctx, o *usecases.SessionOrchestrator) (domain.SessionView, error) {
		return o.ClosePreview(c.UserContext())
	})
}

// SessionBoundsHandler returns the camera box for the points on screen, or 204
// when there is nothing to frame.
func SessionBoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Params("screen"))
		if err := usecases.ValidateScreenID(id); err != nil {
			return errFrom(c, err)
		}
		o, found := deps.Screens.Lookup(id)
		if !found {
			return c.SendStatus(fiber.StatusNoContent)
		}
		b, ok := o.FitActive()
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(boundsResponse(b))
	}
}

// ---- Stateless geometry ----

type boundsRequest struct {
	Points []domain.GeoPoint `json:"points"`
}

// BoundsHandler fits a camera box around arbitrary points.
func BoundsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req boundsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Points) > maxQueryPoints {
			return errBadRequest(c, "too many points (max "+strconv.Itoa(maxQueryPoints)+")")
		}
		if err := domain.ValidatePoints(req.Points); err != nil {
			return errFrom(c, err)
		}
		b, ok := usecases.FitCamera(req.Points)
		if !ok {
			return errBadRequest(c, "points must not be empty")
		}
		return c.JSON(boundsResponse(b))
	}
}

// MeasureHandler measures a point sequence given in the query string as
// points=lat,lng;lat,lng.
func MeasureHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind := domain.KindDistance
		if k := c.Query("kind"); k != "" {
			parsed, err := domain.ParseAnnotationKind(k)
			if err != nil {
				return errBadRequest(c, "kind must be one of marker, distance, field")
			}
			kind = parsed
		}

		points, err := parsePoints(c.Query("points"))
		if err != nil {
			return errFrom(c, err)
		}

		m, p := geospatial.Measure(kind, points)
		formatted := make([]string, len(points))
		for i, pt := range points {
			formatted[i] = readout.FormatPoint(pt)
		}
		return c.JSON(fiber.Map{
			"kind":        kind,
			"points":      points,
			"formatted":   formatted,
			"measurement": readout.Annotate(m),
			"perimeter":   readout.Annotate(p),
		})
	}
}

func boundsResponse(b domain.Bounds) fiber.Map {
	return fiber.Map{"bounds": b, "center": b.Center()}
}

func parseKindBody(c *fiber.Ctx) (domain.AnnotationKind, error) {
	var req kindRequest
	if err := c.BodyParser(&req); err != nil {
		return "", &domain.ValidationError{Field: "body", Message: "invalid request body"}
	}
	return domain.ParseAnnotationKind(req.Kind)
}

// parsePoints reads "lat,lng;lat,lng". An empty string yields no points.
func parsePoints(s string) ([]domain.GeoPoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []domain.GeoPoint{}, nil
	}
	pairs := strings.Split(s, ";")
	if len(pairs) > maxQueryPoints {
		return nil, &domain.ValidationError{Field: "points", Message: "too many points"}
	}

	points := make([]domain.GeoPoint, 0, len(pairs))
	for i, pair := range pairs {
		latStr, lngStr, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, &domain.ValidationError{Field: "points", Message: "point " + strconv.Itoa(i) + " must be lat,lng"}
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		lng, err2 := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
		if err1 != nil || err2 != nil {
			return nil, &domain.ValidationError{Field: "points", Message: "point " + strconv.Itoa(i) + " is not numeric"}
		}
		p, err := domain.NewGeoPoint(lat, lng)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}
