package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/powerhawk/common/logging"
	"github.com/telhawk-systems/powerhawk/common/models"
	"github.com/telhawk-systems/powerhawk/writer/internal/repository"
)

type fakeReader struct {
	device     repository.SeriesQuery
	plant      string
	numBuckets int
	rows       []models.TimeSeriesRow
	err        error
}

func (f *fakeReader) ListDevice(_ context.Context, q repository.SeriesQuery) ([]models.TimeSeriesRow, error) {
	f.device = q
	if _, err := q.Normalize(); err != nil {
		return nil, err
	}
	return f.rows, f.err
}

func (f *fakeReader) ListPlant(_ context.Context, plantID string, numBuckets int, q repository.SeriesQuery) ([]models.TimeSeriesRow, error) {
	f.plant, f.numBuckets = plantID, numBuckets
	return f.rows, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestListSeries_Device(t *testing.T) {
	reader := &fakeReader{rows: []models.TimeSeriesRow{{
		PlantMachineID: "p1#dev1", Timestamp: 2000, PlantID: "p1", MachineID: "dev1",
		KW: models.Some(1.5), PlantBucket: "p1#1",
	}}}
	h := New(reader, 8, nil, nil, logging.Discard())

	rr := get(h.ListSeries, "/v1/series?plant=p1&machine=dev1&from=1000&to=3000&limit=5")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, repository.SeriesQuery{PlantMachineID: "p1#dev1", From: 1000, To: 3000, Limit: 5}, reader.device)

	var doc struct {
		Data []struct {
			Type       string         `json:"type"`
			ID         string         `json:"id"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	require.Len(t, doc.Data, 1)
	assert.Equal(t, "telemetry", doc.Data[0].Type)
	assert.Equal(t, "p1#dev1@2000", doc.Data[0].ID)
	assert.Equal(t, 1.5, doc.Data[0].Attributes["kw"])
	assert.Nil(t, doc.Data[0].Attributes["kvar"])
	assert.EqualValues(t, 1, doc.Meta["count"])
}

func TestListSeries_Plant(t *testing.T) {
	reader := &fakeReader{}
	h := New(reader, 8, nil, nil, logging.Discard())

	rr := get(h.ListSeries, "/v1/series?plant=p1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "p1", reader.plant)
	assert.Equal(t, 8, reader.numBuckets)
	assert.JSONEq(t, `{"data":[],"meta":{"count":0}}`, rr.Body.String())
}

func TestListSeries_Errors(t *testing.T) {
	h := New(&fakeReader{}, 8, nil, nil, logging.Discard())
	assert.Equal(t, http.StatusBadRequest, get(h.ListSeries, "/v1/series").Code)
	assert.Equal(t, http.StatusBadRequest, get(h.ListSeries, "/v1/series?plant=p1&machine=m&from=10&to=5").Code)

	h = New(&fakeReader{err: errors.New("down")}, 8, nil, nil, logging.Discard())
	assert.Equal(t, http.StatusServiceUnavailable, get(h.ListSeries, "/v1/series?plant=p1").Code)
}

func TestReady(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(New(nil, 8, fakePinger{}, nil, logging.Discard()).Ready, "/readyz").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		get(New(nil, 8, fakePinger{err: errors.New("refused")}, nil, logging.Discard()).Ready, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(New(nil, 8, nil, nil, logging.Discard()).Health, "/healthz").Code)
}
