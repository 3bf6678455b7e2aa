package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"estate-assistant/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const maxDocuments = 1000

// Elasticsearch reads up to maxDocuments topic/answer documents from one index.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source struct {
				Topic  string `json:"topic"`
				Answer string `json:"answer"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func NewElasticsearch(client *elasticsearch.Client, index string, log logger.Logger) (*Elasticsearch, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: elasticsearch", ErrMissingBackend)
	}
	if strings.TrimSpace(index) == "" {
		return nil, fmt.Errorf("knowledge base index is required")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Elasticsearch{client: client, index: index, logger: log}, nil
}

func (e *Elasticsearch) Name() string { return NameElasticsearch }

func (e *Elasticsearch) Fetch(ctx context.Context) (map[string]string, error) {
	size := maxDocuments
	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  strings.NewReader(`{"query":{"match_all":{}},"_source":["topic","answer"],"track_total_hits":true}`),
		Size:  &size,
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", e.index, res.Status())
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if total := body.Hits.Total.Value; total > maxDocuments {
		e.logger.Warn("knowledge base index truncated", map[string]interface{}{
			"index":  e.index,
			"total":  total,
			"loaded": len(body.Hits.Hits),
		})
	}

	entries := make(map[string]string, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		entries[hit.Source.Topic] = hit.Source.Answer
	}
	return entries, nil
}
