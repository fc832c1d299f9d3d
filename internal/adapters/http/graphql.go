package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/core/usecases"
	"github.com/samirrijal/geomeasure/internal/pkg/geospatial"
	"github.com/samirrijal/geomeasure/internal/pkg/readout"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	geoPointInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "GeoPointInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lng": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	groupType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Group",
		Fields: graphql.Fields{
			"name":  &graphql.Field{Type: graphql.String},
			"color": &graphql.Field{Type: graphql.String},
		},
	})

	measurementType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Measurement",
		Fields: graphql.Fields{
			"kind":      &graphql.Field{Type: graphql.String},
			"magnitude": &graphql.Field{Type: graphql.Float},
			"unit":      &graphql.Field{Type: graphql.String},
			"display":   &graphql.Field{Type: graphql.String},
		},
	})

	recordType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Record",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"kind":        &graphql.Field{Type: graphql.String},
			"geometry":    &graphql.Field{Type: graphql.NewList(geoPointType)},
			"title":       &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"group":       &graphql.Field{Type: groupType},
			"photo_ref":   &graphql.Field{Type: graphql.String},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
			"updated_at":  &graphql.Field{Type: graphql.DateTime},
			"measurement": &graphql.Field{
				Type: measurementType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rec, ok := p.Source.(*domain.AnnotationRecord)
					if !ok {
						return nil, nil
					}
					m, _ := geospatial.Measure(rec.Kind, rec.Geometry)
					return readout.Annotate(m), nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"records": &graphql.Field{
				Type:        graphql.NewList(recordType),
				Description: "List records, newest first",
				Args: graphql.FieldConfigArgument{
					"kind":  &graphql.ArgumentConfig{Type: graphql.String},
					"group": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var f usecases.RecordFilter
					if k, ok := p.Args["kind"].(string); ok && k != "" {
						kind, err := domain.ParseAnnotationKind(k)
						if err != nil {
							return nil, err
						}
						f.Kind = kind
					}
					f.Group, _ = p.Args["group"].(string)
					recs, err := deps.Records.Find(p.Context, f)
					if err != nil {
						return nil, err
					}
					out := make([]*domain.AnnotationRecord, len(recs))
					for i := range recs {
						out[i] = &recs[i]
					}
					return out, nil
				},
			},
			"record": &graphql.Field{
				Type:        recordType,
				Description: "Get a record by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Records.Get(p.Context, p.Args["id"].(string))
				},
			},
			"groups": &graphql.Field{
				Type:        graphql.NewList(groupType),
				Description: "List the group catalogue",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Groups.List(p.Context)
				},
			},
			"measure": &graphql.Field{
				Type:        measurementType,
				Description: "Measure a point sequence as a distance or a field",
				Args: graphql.FieldConfigArgument{
					"kind":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.KindDistance)},
					"points": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(geoPointInput))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					kind, err := domain.ParseAnnotationKind(p.Args["kind"].(string))
					if err != nil {
						return nil, err
					}
					points, err := pointsArg(p.Args["points"])
					if err != nil {
						return nil, err
					}
					m, _ := geospatial.Measure(kind, points)
					return readout.Annotate(m), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func pointsArg(v interface{}) ([]domain.GeoPoint, error) {
	raw, _ := v.([]interface{})
	points := make([]domain.GeoPoint, 0, len(raw))
	for _, item := range raw {
		m, _ := item.(map[string]interface{})
		lat, _ := m["lat"].(float64)
		lng, _ := m["lng"].(float64)
		p, err := domain.NewGeoPoint(lat, lng)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
