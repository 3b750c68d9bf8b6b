package omegga

import "github.com/google/jsonschema-go/jsonschema"

// Schema is a JSON Schema object for request params validation.
type Schema = jsonschema.Schema

// HandlerSpec refines how an inbound request handler is registered.
type HandlerSpec struct {
	// Params is validated against the request params before the
	// handler runs. Requests failing validation are answered with
	// CodeInvalidParams and the handler is never invoked.
	// A nil Params skips validation.
	Params *Schema
}

// ParamsSchema builds an object schema from property names mapped to Go
// type strings (e.g. "string", "int", "[]string"). Properties listed in
// required are mandatory; the rest are optional.
//
// Example:
//
//	spec := omegga.HandlerSpec{
//	    Params: omegga.ParamsSchema(map[string]string{
//	        "target": "string",
//	        "line":   "string",
//	        "count":  "int",
//	    }, "target", "line"),
//	}
func ParamsSchema(props map[string]string, required ...string) *Schema {
	properties := make(map[string]*jsonschema.Schema, len(props))
	for name, goType := range props {
		properties[name] = goTypeToJSONSchema(goType)
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// goTypeToJSONSchema converts a Go type string to a JSON Schema type.
func goTypeToJSONSchema(goType string) *jsonschema.Schema {
	switch goType {
	case "string":
		return &jsonschema.Schema{Type: "string"}
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return &jsonschema.Schema{Type: "integer"}
	case "float32", "float64", "float", "number":
		return &jsonschema.Schema{Type: "number"}
	case "bool", "boolean":
		return &jsonschema.Schema{Type: "boolean"}
	case "any", "object", "map[string]any":
		return &jsonschema.Schema{Type: "object"}
	default:
		// Check for array types
		if len(goType) > 2 && goType[:2] == "[]" {
			itemType := goType[2:]

			return &jsonschema.Schema{
				Type:  "array",
				Items: goTypeToJSONSchema(itemType),
			}
		}

		// Default to string
		return &jsonschema.Schema{Type: "string"}
	}
}
