package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
)

// TransformResult is the outcome of one record. Data holds the decoded
// sanitized JSON for kept records.
type TransformResult struct {
	RecordID string `json:"recordId"`
	Result   string `json:"result"`
	Data     string `json:"data,omitempty"`
}

type transformRecord struct {
	RecordID string `json:"recordId"`
	Data     string `json:"data"`
}

type transformRequest struct {
	Records []transformRecord `json:"records"`
}

type transformResponse struct {
	Records []TransformResult `json:"records"`
}

// ArchiveClient calls the archive service transform endpoint.
type ArchiveClient struct {
	baseClient
}

func NewArchiveClient(baseURL string) *ArchiveClient {
	return &ArchiveClient{baseClient: newBaseClient(baseURL)}
}

// Transform sanitizes docs. Record ids are the 1-based document positions.
func (c *ArchiveClient) Transform(ctx context.Context, docs [][]byte) ([]TransformResult, error) {
	req := transformRequest{Records: make([]transformRecord, len(docs))}
	for i, doc := range docs {
		req.Records[i] = transformRecord{
			RecordID: strconv.Itoa(i + 1),
			Data:     base64.StdEncoding.EncodeToString(doc),
		}
	}

	var resp transformResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/transform", req, &resp); err != nil {
		return nil, err
	}

	for i, rec := range resp.Records {
		if rec.Data == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.RecordID, err)
		}
		resp.Records[i].Data = string(decoded)
	}
	return resp.Records, nil
}
