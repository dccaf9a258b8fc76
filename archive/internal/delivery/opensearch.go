package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
)

// Config holds OpenSearch connection and index settings.
type Config struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	IndexPrefix   string
	ShardCount    int
	ReplicaCount  int
}

// BulkResult reports per-item outcomes of one bulk request.
type BulkResult struct {
	Indexed int
	Failed  int
	Errors  []string
}

// OpenSearchSink writes documents with the _bulk API.
type OpenSearchSink struct {
	osClient *opensearch.Client
	config   Config
	logger   *slog.Logger
}

// NewOpenSearchSink creates a sink. The cluster is not contacted until
// Initialize or Bulk.
func NewOpenSearchSink(cfg Config, logger *slog.Logger) (*OpenSearchSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &OpenSearchSink{osClient: client, config: cfg, logger: logger}, nil
}

// Initialize verifies connectivity and installs the telemetry index template.
func (s *OpenSearchSink) Initialize(ctx context.Context) error {
	info, err := s.osClient.Info(s.osClient.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	if err := s.createIndexTemplate(ctx); err != nil {
		return fmt.Errorf("failed to create index template: %w", err)
	}

	s.logger.Info("OpenSearch initialized", slog.String("index_prefix", s.config.IndexPrefix))
	return nil
}

// Ping checks that the cluster answers.
func (s *OpenSearchSink) Ping(ctx context.Context) error {
	res, err := s.osClient.Ping(s.osClient.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch ping: %s", res.Status())
	}
	return nil
}

func (s *OpenSearchSink) createIndexTemplate(ctx context.Context) error {
	template := map[string]any{
		"index_patterns": []string{s.config.IndexPrefix + "-*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   s.config.ShardCount,
				"number_of_replicas": s.config.ReplicaCount,
			},
			"mappings": telemetryMappings(),
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	res, err := s.osClient.Indices.PutIndexTemplate(
		s.config.IndexPrefix+"-template",
		bytes.NewReader(body),
		s.osClient.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s - %s", res.Status(), string(bodyBytes))
	}
	return nil
}

func telemetryMappings() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	double := map[string]any{"type": "double"}

	return map[string]any{
		"dynamic": true,
		"properties": map[string]any{
			"plantId":     keyword,
			"machineId":   keyword,
			"macId":       keyword,
			"packetId":    keyword,
			"slaveId":     keyword,
			"slaveName":   keyword,
			"receivedAt":  map[string]any{"type": "date", "format": "epoch_millis"},
			"kw":          double,
			"kvar":        double,
			"kva":         double,
			"powerFactor": double,
			"utilization": map[string]any{"type": "byte"},
		},
	}
}

// Bulk indexes docs into index. Each doc must be one JSON object terminated
// by "\n". A transport or whole-request failure returns an error; per-item
// failures are reported in the result.
func (s *OpenSearchSink) Bulk(ctx context.Context, index string, docs [][]byte) (BulkResult, error) {
	action, err := json.Marshal(map[string]any{"index": map[string]string{"_index": index}})
	if err != nil {
		return BulkResult{}, err
	}

	var body bytes.Buffer
	for _, doc := range docs {
		body.Write(action)
		body.WriteByte('\n')
		body.Write(doc)
	}

	res, err := s.osClient.Bulk(&body, s.osClient.Bulk.WithContext(ctx))
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return BulkResult{}, fmt.Errorf("bulk request rejected: %s - %s", res.Status(), string(bodyBytes))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return BulkResult{}, fmt.Errorf("failed to decode bulk response: %w", err)
	}

	var result BulkResult
	for _, item := range parsed.Items {
		for _, op := range item {
			if op.Status >= 200 && op.Status < 300 {
				result.Indexed++
				continue
			}
			result.Failed++
			if op.Error != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", op.Error.Type, op.Error.Reason))
			}
		}
	}
	return result, nil
}

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemOutcome `json:"items"`
}

type bulkItemOutcome struct {
	Status int `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}
