package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/telhawk-systems/powerhawk/common/models"
)

// SeriesQuery selects time-series rows. Machine empty means the whole plant.
type SeriesQuery struct {
	Plant   string
	Machine string
	From    int64
	To      int64
	Limit   int
}

func (q SeriesQuery) values() url.Values {
	v := url.Values{}
	v.Set("plant", q.Plant)
	if q.Machine != "" {
		v.Set("machine", q.Machine)
	}
	if q.From > 0 {
		v.Set("from", strconv.FormatInt(q.From, 10))
	}
	if q.To > 0 {
		v.Set("to", strconv.FormatInt(q.To, 10))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// SeriesClient reads time-series rows from the writer service.
type SeriesClient struct {
	baseClient
}

func NewSeriesClient(baseURL string) *SeriesClient {
	return &SeriesClient{baseClient: newBaseClient(baseURL)}
}

func (c *SeriesClient) List(ctx context.Context, q SeriesQuery) ([]models.TimeSeriesRow, error) {
	var doc collectionDocument
	if err := c.doJSON(ctx, http.MethodGet, "/v1/series?"+q.values().Encode(), nil, &doc); err != nil {
		return nil, err
	}
	return decodeCollection[models.TimeSeriesRow](doc)
}
