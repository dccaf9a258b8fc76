package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// IngestResult mirrors the enrich packet endpoint response.
type IngestResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// PacketClient posts raw packets to the enrich service.
type PacketClient struct {
	baseClient
}

// NewPacketClient creates a PacketClient. token is sent as a bearer device
// token when non-empty.
func NewPacketClient(baseURL, token string) *PacketClient {
	c := &PacketClient{baseClient: newBaseClient(baseURL)}
	c.token = token
	return c
}

// Send posts packets as NDJSON, one object per line.
func (c *PacketClient) Send(ctx context.Context, packets []map[string]any) (IngestResult, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, p := range packets {
		if err := enc.Encode(p); err != nil {
			return IngestResult{}, err
		}
	}

	var res IngestResult
	err := c.do(ctx, http.MethodPost, "/v1/packets", "application/x-ndjson", &body, &res)
	return res, err
}
