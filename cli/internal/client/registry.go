package client

import (
	"context"
	"net/http"
	"net/url"
)

// Device is one device registry entry.
type Device struct {
	MacID      string         `json:"macId"`
	Attributes map[string]any `json:"attributes"`
}

// RegistryClient talks to the enrich service registry endpoints.
type RegistryClient struct {
	baseClient
}

func NewRegistryClient(baseURL string) *RegistryClient {
	return &RegistryClient{baseClient: newBaseClient(baseURL)}
}

// Get returns the entry for macID, or an error matching ErrNotFound.
func (c *RegistryClient) Get(ctx context.Context, macID string) (*Device, error) {
	var doc resourceDocument
	if err := c.doJSON(ctx, http.MethodGet, "/v1/registry/"+url.PathEscape(macID), nil, &doc); err != nil {
		return nil, err
	}
	return toDevice(doc)
}

// Put replaces the entry for macID. The service validates attribute types.
func (c *RegistryClient) Put(ctx context.Context, macID string, attrs map[string]any) (*Device, error) {
	req := jsonAPIRequest{Data: jsonAPIRequestData{Type: "device", ID: macID, Attributes: attrs}}

	var doc resourceDocument
	if err := c.doJSON(ctx, http.MethodPut, "/v1/registry/"+url.PathEscape(macID), req, &doc); err != nil {
		return nil, err
	}
	return toDevice(doc)
}

func toDevice(doc resourceDocument) (*Device, error) {
	attrs, err := decodeAttributes[map[string]any](doc.Data)
	if err != nil {
		return nil, err
	}
	return &Device{MacID: doc.Data.ID, Attributes: attrs}, nil
}
