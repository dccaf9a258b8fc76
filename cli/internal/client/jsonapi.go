package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/telhawk-systems/powerhawk/common/httputil"
)

// ErrNotFound is returned when a service answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response carrying JSON:API error objects.
type APIError struct {
	StatusCode int
	Errors     []httputil.ErrorObject
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	details := make([]string, 0, len(e.Errors))
	for _, obj := range e.Errors {
		if obj.Detail != "" {
			details = append(details, obj.Detail)
		} else {
			details = append(details, obj.Title)
		}
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, strings.Join(details, "; "))
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type resourceDocument struct {
	Data httputil.Resource `json:"data"`
}

type collectionDocument struct {
	Data []httputil.Resource `json:"data"`
}

// jsonAPIRequest wraps attributes in JSON:API format for requests.
type jsonAPIRequest struct {
	Data jsonAPIRequestData `json:"data"`
}

type jsonAPIRequestData struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Attributes any    `json:"attributes"`
}

func decodeAttributes[T any](res httputil.Resource) (T, error) {
	var out T
	if err := json.Unmarshal(res.Attributes, &out); err != nil {
		return out, fmt.Errorf("decode %s %s: %w", res.Type, res.ID, err)
	}
	return out, nil
}
