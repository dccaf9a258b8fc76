package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/powerhawk/archive/internal/sanitizer"
	"github.com/telhawk-systems/powerhawk/common/logging"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newHandler(sink Pinger) *Handler {
	return New(sanitizer.New([]string{"kw", "kvar"}, []string{"kw", "total_kw"}), sink, nil, logging.Discard())
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestTransform(t *testing.T) {
	body, err := json.Marshal(TransformRequest{Records: []sanitizer.Record{
		{RecordID: "a", Data: b64(`{"kw":"12.5","kvar":"Response Timed Out"}`)},
		{RecordID: "b", Data: b64(`{"kvar":1}`)},
		{RecordID: "c", Data: "%%%"},
	}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	newHandler(nil).Transform(rec, httptest.NewRequest(http.MethodPost, "/v1/transform", strings.NewReader(string(body))))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TransformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 3)

	assert.Equal(t, sanitizer.Result{RecordID: "a", Result: sanitizer.ResultOk, Data: b64(`{"kvar":null,"kw":12.5}` + "\n")}, resp.Records[0])
	assert.Equal(t, sanitizer.Result{RecordID: "b", Result: sanitizer.ResultDropped}, resp.Records[1])
	assert.Equal(t, sanitizer.Result{RecordID: "c", Result: sanitizer.ResultDropped}, resp.Records[2])
}

func TestTransform_EmptyBatch(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(nil).Transform(rec, httptest.NewRequest(http.MethodPost, "/v1/transform", strings.NewReader(`{"records":[]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"records":[]}`, rec.Body.String())
}

func TestTransform_BadBody(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(nil).Transform(rec, httptest.NewRequest(http.MethodPost, "/v1/transform", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReady(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(fakePinger{}).Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newHandler(fakePinger{err: errors.New("refused")}).Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(nil).Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
