// Package graphql serves the kiosk API. Queries are parsed and validated
// against the embedded schema, then dispatched to the root resolvers and
// shaped to the requested selection set.
package graphql

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
	"go.uber.org/zap"
)

//go:embed schema.graphql
var schemaSource string

// Schema is the kiosk GraphQL schema.
var Schema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSource})

type fieldFunc func(ctx context.Context, args map[string]any) (any, error)

// Executor runs GraphQL operations against a Resolver.
type Executor struct {
	resolver  *Resolver
	queries   map[string]fieldFunc
	mutations map[string]fieldFunc
}

// NewExecutor creates an executor for the resolver.
func NewExecutor(r *Resolver) *Executor {
	q, m := r.Query(), r.Mutation()
	return &Executor{
		resolver: r,
		queries: map[string]fieldFunc{
			"health": func(ctx context.Context, _ map[string]any) (any, error) {
				return q.Health(ctx)
			},
			"shipment": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					ID           string `json:"id"`
					IncludeLabel *bool  `json:"includeLabel"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return q.Shipment(ctx, a.ID, a.IncludeLabel)
			},
			"shipments": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					Limit *int `json:"limit"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return q.Shipments(ctx, a.Limit)
			},
			"estimates": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					Input EstimateInput `json:"input"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return q.Estimates(ctx, a.Input)
			},
			"trackShipment": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					TrackingNumber string `json:"trackingNumber"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return q.TrackShipment(ctx, a.TrackingNumber)
			},
		},
		mutations: map[string]fieldFunc{
			"createShipment": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					Input CreateShipmentInput `json:"input"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return m.CreateShipment(ctx, a.Input)
			},
			"schedulePickup": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					Input PickupInput `json:"input"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return m.SchedulePickup(ctx, a.Input)
			},
			"sendInvoiceReminder": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					ShipmentID string `json:"shipmentId"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return m.SendInvoiceReminder(ctx, a.ShipmentID)
			},
			"voidInvoice": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					ShipmentID string `json:"shipmentId"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return m.VoidInvoice(ctx, a.ShipmentID)
			},
			"createInvoice": func(ctx context.Context, args map[string]any) (any, error) {
				var a struct {
					ShipmentID string `json:"shipmentId"`
				}
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return m.CreateInvoice(ctx, a.ShipmentID)
			},
		},
	}
}

// Execute parses, validates and runs one operation. Root fields run in
// document order; a failing field yields null and an error entry.
func (e *Executor) Execute(ctx context.Context, params *gqlgen.RawParams) *gqlgen.Response {
	doc, errs := gqlparser.LoadQuery(Schema, params.Query)
	if len(errs) > 0 {
		return &gqlgen.Response{Errors: errs}
	}

	op := doc.Operations.ForName(params.OperationName)
	if op == nil {
		if params.OperationName == "" {
			return errorResponse(gqlerror.Errorf("an operation name is required when the document has several operations"))
		}
		return errorResponse(gqlerror.Errorf("operation %q not found", params.OperationName))
	}

	vars, err := validator.VariableValues(Schema, op, params.Variables)
	if err != nil {
		var gqlErr *gqlerror.Error
		if errors.As(err, &gqlErr) {
			return errorResponse(gqlErr)
		}
		return errorResponse(gqlerror.Errorf("%s", err.Error()))
	}

	roots := e.queries
	if op.Operation == ast.Mutation {
		roots = e.mutations
	} else if op.Operation != ast.Query {
		return errorResponse(gqlerror.Errorf("%s operations are not supported", op.Operation))
	}

	x := &execution{doc: doc, vars: vars}
	data := make(object, 0, len(op.SelectionSet))
	nullData := false

	for _, field := range x.collect(op.SelectionSet) {
		if field.Name == "__typename" {
			data = append(data, objectField{field.Alias, field.ObjectDefinition.Name})
			continue
		}
		resolve, ok := roots[field.Name]
		if !ok {
			x.fail(field, fmt.Errorf("field %s is not supported", field.Name), "UNSUPPORTED")
			data = append(data, objectField{field.Alias, nil})
			nullData = nullData || nonNull(field)
			continue
		}

		value, err := resolve(ctx, field.ArgumentMap(vars))
		if err != nil {
			e.resolver.Logger.Ctx(ctx).Warn("GraphQL field failed",
				zap.String("field", field.Name),
				zap.Error(err),
			)
			x.fail(field, err, errorCode(err))
			data = append(data, objectField{field.Alias, nil})
			nullData = nullData || nonNull(field)
			continue
		}

		completed, err := x.complete(field, value)
		if err != nil {
			x.fail(field, err, CodeInternal)
			nullData = nullData || nonNull(field)
		}
		data = append(data, objectField{field.Alias, completed})
	}

	resp := &gqlgen.Response{Errors: x.errors, Data: json.RawMessage("null")}
	if !nullData {
		raw, err := json.Marshal(data)
		if err != nil {
			return errorResponse(gqlerror.Errorf("encoding response: %s", err.Error()))
		}
		resp.Data = raw
	}
	return resp
}

type execution struct {
	doc    *ast.QueryDocument
	vars   map[string]any
	errors gqlerror.List
}

func (x *execution) fail(field *ast.Field, err error, code string) {
	gqlErr := &gqlerror.Error{
		Message:    err.Error(),
		Path:       ast.Path{ast.PathName(field.Alias)},
		Extensions: map[string]any{"code": code},
	}
	if field.Position != nil {
		gqlErr.Locations = []gqlerror.Location{{Line: field.Position.Line, Column: field.Position.Column}}
	}
	x.errors = append(x.errors, gqlErr)
}

func nonNull(field *ast.Field) bool {
	return field.Definition != nil && field.Definition.Type.NonNull
}

// complete converts a resolver result to plain JSON values and keeps only
// the selected fields.
func (x *execution) complete(field *ast.Field, value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return x.shape(field.SelectionSet, field.Definition.Type.Name(), generic), nil
}

func (x *execution) shape(set ast.SelectionSet, typeName string, value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = x.shape(set, typeName, item)
		}
		return out
	case map[string]any:
		if len(set) == 0 {
			return v
		}
		out := make(object, 0, len(set))
		for _, f := range x.collect(set) {
			if f.Name == "__typename" {
				out = append(out, objectField{f.Alias, typeName})
				continue
			}
			out = append(out, objectField{f.Alias, x.shape(f.SelectionSet, f.Definition.Type.Name(), v[f.Name])})
		}
		return out
	default:
		return v
	}
}

// collect flattens fragments and applies @skip and @include.
func (x *execution) collect(set ast.SelectionSet) []*ast.Field {
	var out []*ast.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if x.included(s.Directives) {
				out = append(out, s)
			}
		case *ast.InlineFragment:
			if x.included(s.Directives) {
				out = append(out, x.collect(s.SelectionSet)...)
			}
		case *ast.FragmentSpread:
			if !x.included(s.Directives) {
				continue
			}
			def := s.Definition
			if def == nil {
				def = x.doc.Fragments.ForName(s.Name)
			}
			if def != nil {
				out = append(out, x.collect(def.SelectionSet)...)
			}
		}
	}
	return out
}

func (x *execution) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(x.vars)["if"].(bool); skip {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(x.vars)["if"].(bool); !include {
			return false
		}
	}
	return true
}

func decodeArgs(args map[string]any, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}

func errorResponse(err *gqlerror.Error) *gqlgen.Response {
	return &gqlgen.Response{Errors: gqlerror.List{err}}
}

// object is a JSON object that keeps the selection order.
type object []objectField

type objectField struct {
	key   string
	value any
}

// MarshalJSON implements json.Marshaler.
func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
