package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/telhawk-systems/powerhawk/common/models"
)

// LatestClient reads latest-state rows from the latest service.
type LatestClient struct {
	baseClient
}

func NewLatestClient(baseURL string) *LatestClient {
	return &LatestClient{baseClient: newBaseClient(baseURL)}
}

// Get returns the latest reading of one machine.
func (c *LatestClient) Get(ctx context.Context, plantID, machineID string) (models.LatestStateRow, error) {
	var doc resourceDocument
	path := "/v1/latest/" + url.PathEscape(plantID) + "/" + url.PathEscape(machineID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &doc); err != nil {
		return models.LatestStateRow{}, err
	}
	return decodeAttributes[models.LatestStateRow](doc.Data)
}

// List returns the latest readings of every machine of a plant.
func (c *LatestClient) List(ctx context.Context, plantID string) ([]models.LatestStateRow, error) {
	var doc collectionDocument
	if err := c.doJSON(ctx, http.MethodGet, "/v1/latest?plant="+url.QueryEscape(plantID), nil, &doc); err != nil {
		return nil, err
	}
	return decodeCollection[models.LatestStateRow](doc)
}

func decodeCollection[T any](doc collectionDocument) ([]T, error) {
	out := make([]T, 0, len(doc.Data))
	for _, res := range doc.Data {
		item, err := decodeAttributes[T](res)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
