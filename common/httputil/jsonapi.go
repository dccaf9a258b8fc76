package httputil

import "encoding/json"

// Resource is a single JSON:API resource object.
type Resource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

// Document is a JSON:API top-level document. Data holds a Resource or a
// []Resource.
type Document struct {
	Data   any            `json:"data"`
	Meta   map[string]any `json:"meta,omitempty"`
	Errors []ErrorObject  `json:"errors,omitempty"`
}

// ErrorDocument is a JSON:API document that carries only errors.
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

// ErrorObject represents a single JSON:API error.
type ErrorObject struct {
	Status int    `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewResource marshals attributes into a Resource.
func NewResource(resourceType, id string, attributes any) (Resource, error) {
	raw, err := json.Marshal(attributes)
	if err != nil {
		return Resource{}, err
	}
	return Resource{Type: resourceType, ID: id, Attributes: raw}, nil
}

// ResourceDocument wraps one resource.
func ResourceDocument(r Resource) Document {
	return Document{Data: r}
}

// CollectionDocument wraps a list of resources and reports its size in meta.
func CollectionDocument(items []Resource) Document {
	if items == nil {
		items = []Resource{}
	}
	return Document{Data: items, Meta: map[string]any{"count": len(items)}}
}
