package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/casaview/internal/core/domain"
)

// listingSource unwraps the resolver source into a listing.
func listingSource(p graphql.ResolveParams) (domain.Listing, bool) {
	switch v := p.Source.(type) {
	case domain.Listing:
		return v, true
	case *domain.Listing:
		if v != nil {
			return *v, true
		}
	}
	return domain.Listing{}, false
}

// listingField builds a field whose value is derived from the listing.
func listingField(t graphql.Output, fn func(domain.Listing) interface{}) *graphql.Field {
	return &graphql.Field{
		Type: t,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			l, ok := listingSource(p)
			if !ok {
				return nil, nil
			}
			return fn(l), nil
		},
	}
}

func argFloat(args map[string]interface{}, name string) *float64 {
	v, ok := args[name].(float64)
	if !ok {
		return nil
	}
	return &v
}

// buildSchema creates the GraphQL schema wired to the listing service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"north": &graphql.Field{Type: graphql.Float},
			"south": &graphql.Field{Type: graphql.Float},
			"east":  &graphql.Field{Type: graphql.Float},
			"west":  &graphql.Field{Type: graphql.Float},
		},
	})

	imageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Image",
		Fields: graphql.Fields{
			"url":              &graphql.Field{Type: graphql.String},
			"name":             &graphql.Field{Type: graphql.String},
			"alternative_text": &graphql.Field{Type: graphql.String},
		},
	})

	listingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Listing",
		Fields: graphql.Fields{
			"id":            listingField(graphql.Int, func(l domain.Listing) interface{} { return l.ID }),
			"slug":          listingField(graphql.String, func(l domain.Listing) interface{} { return l.Slug }),
			"title":         listingField(graphql.String, func(l domain.Listing) interface{} { return l.Title }),
			"description":   listingField(graphql.String, func(l domain.Listing) interface{} { return l.Description }),
			"price":         listingField(graphql.Float, func(l domain.Listing) interface{} { return l.Price }),
			"location":      listingField(graphql.String, func(l domain.Listing) interface{} { return l.Location }),
			"bedrooms":      listingField(graphql.Int, func(l domain.Listing) interface{} { return l.Bedrooms }),
			"bathrooms":     listingField(graphql.Int, func(l domain.Listing) interface{} { return l.Bathrooms }),
			"listing_type":  listingField(graphql.String, func(l domain.Listing) interface{} { return string(l.Type) }),
			"label":         listingField(graphql.String, func(l domain.Listing) interface{} { return l.Label() }),
			"status":        listingField(graphql.String, func(l domain.Listing) interface{} { return l.Status }),
			"property_type": listingField(graphql.String, func(l domain.Listing) interface{} { return l.PropertyType }),
			"latitude":      listingField(graphql.Float, func(l domain.Listing) interface{} { return l.Latitude.Ptr() }),
			"longitude":     listingField(graphql.Float, func(l domain.Listing) interface{} { return l.Longitude.Ptr() }),
			"cover_image":   listingField(graphql.String, func(l domain.Listing) interface{} { return l.CoverImage() }),
			"images":        listingField(graphql.NewList(imageType), func(l domain.Listing) interface{} { return l.Images }),
			"area_m2": listingField(graphql.Int, func(l domain.Listing) interface{} {
				if m2, ok := l.AreaSquareMeters(); ok {
					return m2
				}
				return nil
			}),
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ListingView",
		Fields: graphql.Fields{
			"listings":         &graphql.Field{Type: graphql.NewList(listingType)},
			"total_unfiltered": &graphql.Field{Type: graphql.Int},
		},
	})

	frameType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Frame",
		Fields: graphql.Fields{
			"box": &graphql.Field{Type: boundsType},
			"ok":  &graphql.Field{Type: graphql.Boolean},
		},
	})

	typeArg := &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "all"}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"listings": &graphql.Field{
				Type:        viewType,
				Description: "Listings of a type inside an optional viewport, in source order",
				Args: graphql.FieldConfigArgument{
					"type":  typeArg,
					"north": &graphql.ArgumentConfig{Type: graphql.Float},
					"south": &graphql.ArgumentConfig{Type: graphql.Float},
					"east":  &graphql.ArgumentConfig{Type: graphql.Float},
					"west":  &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, ok := domain.ParseListingType(p.Args["type"].(string))
					if !ok {
						return nil, fmt.Errorf("unknown listing type %q", p.Args["type"])
					}
					q := viewportQuery{
						North: argFloat(p.Args, "north"),
						South: argFloat(p.Args, "south"),
						East:  argFloat(p.Args, "east"),
						West:  argFloat(p.Args, "west"),
					}
					if err := validate.Struct(q); err != nil {
						return nil, fmt.Errorf("north, south, east and west must be given together within range")
					}
					visible, total, err := deps.Listings.InViewport(p.Context, t, q.bounds())
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"listings":         visible,
						"total_unfiltered": total,
					}, nil
				},
			},
			"listing": &graphql.Field{
				Type:        listingType,
				Description: "Get a listing by slug",
				Args: graphql.FieldConfigArgument{
					"slug": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Listings.GetBySlug(p.Context, p.Args["slug"].(string))
				},
			},
			"frame": &graphql.Field{
				Type:        frameType,
				Description: "Initial framing box for a listing type",
				Args: graphql.FieldConfigArgument{
					"type": typeArg,
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, ok := domain.ParseListingType(p.Args["type"].(string))
					if !ok {
						return nil, fmt.Errorf("unknown listing type %q", p.Args["type"])
					}
					box, ok, err := deps.Listings.Frame(p.Context, t)
					if err != nil {
						return nil, err
					}
					if !ok {
						return map[string]interface{}{"ok": false}, nil
					}
					return map[string]interface{}{"ok": true, "box": box}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
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
		if req.Query == "" {
			return errBadRequest(c, "query is required")
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
