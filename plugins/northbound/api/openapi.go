package api

import (
	"encoding"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/codec"
)

var (
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	rawMessageType    = reflect.TypeOf(json.RawMessage(nil))
)

func buildOpenAPISpec() *openapi3.T {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "aasbus API",
			Description: "HTTP gateway to the digital twin message bus",
			Version:     "1.0.0",
		},
		Paths: &openapi3.Paths{},
		Tags: openapi3.Tags{
			{Name: "Events", Description: "Publish and stream bus messages"},
			{Name: "Elements", Description: "Last recorded element state"},
			{Name: "General", Description: "General API endpoints"},
		},
	}

	kindNames := make([]interface{}, 0)
	for _, k := range events.Kinds() {
		if !k.Abstract() {
			kindNames = append(kindNames, k.String())
		}
	}
	envelope := schemaFromType(reflect.TypeOf(codec.Envelope{}))
	envelope.Value.Properties["kind"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: kindNames},
	}

	spec.Paths.Set("/api/events", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"Events"},
			Summary:     "Publish a message onto the bus",
			OperationID: "publishEvent",
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(envelope),
			},
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(202, jsonResponse("Message accepted", PublishResponse{})),
				openapi3.WithStatus(400, jsonResponse("Malformed envelope or unpublishable kind", ErrorResponse{})),
				openapi3.WithStatus(413, jsonResponse("Request body exceeds 1 MiB", ErrorResponse{})),
				openapi3.WithStatus(429, jsonResponse("Publish rate exceeded", ErrorResponse{})),
				openapi3.WithStatus(503, jsonResponse("Bus stopped or queue full", ErrorResponse{})),
			),
		},
	})

	spec.Paths.Set("/api/events/stream", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"Events"},
			Summary:     "Stream matching messages over a WebSocket",
			OperationID: "streamEvents",
			Parameters: openapi3.Parameters{
				queryParam("kind", "Comma separated kinds, default Event", false),
				queryParam("ref", "Only messages about this element or its children", false),
			},
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(101, &openapi3.ResponseRef{
					Value: &openapi3.Response{Description: ptr("Switching to the WebSocket protocol")},
				}),
				openapi3.WithStatus(400, jsonResponse("Unknown kind or malformed reference", ErrorResponse{})),
			),
		},
	})

	spec.Paths.Set("/api/stats", getOperation("General", "getStats", "Bus counters", events.Stats{}))
	spec.Paths.Set("/api/kinds", getOperation("General", "listKinds", "Message kind hierarchy", []KindInfo{}))
	spec.Paths.Set("/api/status", getOperation("General", "getStatus", "API server status", Status{}))

	for _, p := range []struct {
		path, id, summary string
	}{
		{"/api/elements", "getElement", "Last recorded element"},
		{"/api/elements/value", "getElementValue", "Last recorded element value"},
	} {
		item := getOperation("Elements", p.id, p.summary, ElementResponse{})
		item.Get.Parameters = openapi3.Parameters{queryParam("ref", "Element reference", true)}
		item.Get.Responses.Set("404", jsonResponse("Nothing recorded or journal disabled", ErrorResponse{}))
		spec.Paths.Set(p.path, item)
	}

	return spec
}

func getOperation(tag, id, summary string, out interface{}) *openapi3.PathItem {
	return &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{tag},
			Summary:     summary,
			OperationID: id,
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(200, jsonResponse(summary, out)),
			),
		},
	}
}

func jsonResponse(description string, v interface{}) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: ptr(description),
			Content:     openapi3.NewContentWithJSONSchemaRef(schemaFromType(reflect.TypeOf(v))),
		},
	}
}

func queryParam(name, description string, required bool) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          openapi3.ParameterInQuery,
			Description: description,
			Required:    required,
			Schema:      &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
		},
	}
}

func schemaFromType(t reflect.Type) *openapi3.SchemaRef {
	if t == nil {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == reflect.TypeOf(time.Time{}) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
	}

	if t == rawMessageType {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Description: "Any JSON value"}}
	}

	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	}

	if t == reflect.TypeOf(time.Duration(0)) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Description: "Duration in nanoseconds"}}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "byte"}}
		}
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: schemaFromType(t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: schemaFromType(t.Elem())},
			},
		}

	case reflect.Struct:
		return structToSchema(t)

	case reflect.Interface:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}

	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
}

func structToSchema(t reflect.Type) *openapi3.SchemaRef {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := openapi3.Schemas{}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitempty = true
				}
			}
		}

		propSchema := schemaFromType(field.Type)

		if desc := field.Tag.Get("description"); desc != "" {
			propSchema.Value.Description = desc
		}

		properties[name] = propSchema
		if !omitempty && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: properties,
			Required:   required,
		},
	}
}

func ptr(s string) *string {
	return &s
}
