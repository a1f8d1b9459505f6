// Package vector talks to the Pinecone-compatible vector index that
// holds the embedded comic corpus.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/errors"
	httpclient "asset-workers/internal/common/http"
	"asset-workers/internal/models"
)

// Index is the minimal surface of the vector index the pipeline needs.
type Index interface {
	Query(ctx context.Context, embedding []float64, topK int) ([]models.VectorMatch, error)
	ListPaginated(ctx context.Context, limit int, paginationToken string) ([]models.VectorRecord, string, error)
	Fetch(ctx context.Context, ids []string) (map[string]models.VectorRecord, error)
	WithNamespace(namespace string) Index
}

// PineconeIndex implements Index against the Pinecone data-plane REST API.
type PineconeIndex struct {
	host      string
	apiKey    string
	namespace string
	client    *httpclient.Client
}

func NewPineconeIndex(cfg config.PineconeConfig) *PineconeIndex {
	return &PineconeIndex{
		host:      cfg.IndexHost,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		client:    httpclient.NewClient(config.GetDuration(cfg.Timeout)),
	}
}

// WithNamespace returns a view of the index scoped to another namespace.
func (p *PineconeIndex) WithNamespace(namespace string) Index {
	scoped := *p
	scoped.namespace = namespace
	return &scoped
}

type queryRequest struct {
	Vector          []float64 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float64                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
}

func (p *PineconeIndex) Query(ctx context.Context, embedding []float64, topK int) ([]models.VectorMatch, error) {
	body, err := json.Marshal(queryRequest{
		Vector:          embedding,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       p.namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)

	var resp queryResponse
	if err := p.do(req, &resp); err != nil {
		return nil, errors.NewVectorQueryFailedError("similarity", err)
	}

	matches := make([]models.VectorMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, models.VectorMatch{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return matches, nil
}

type listResponse struct {
	Vectors []struct {
		ID string `json:"id"`
	} `json:"vectors"`
	Pagination struct {
		Next string `json:"next"`
	} `json:"pagination"`
}

func (p *PineconeIndex) ListPaginated(ctx context.Context, limit int, paginationToken string) ([]models.VectorRecord, string, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	if paginationToken != "" {
		q.Set("paginationToken", paginationToken)
	}
	if p.namespace != "" {
		q.Set("namespace", p.namespace)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/vectors/list?"+q.Encode(), nil)
	if err != nil {
		return nil, "", err
	}
	p.setHeaders(req)

	var resp listResponse
	if err := p.do(req, &resp); err != nil {
		return nil, "", errors.NewVectorListFailedError(err)
	}

	records := make([]models.VectorRecord, 0, len(resp.Vectors))
	for _, v := range resp.Vectors {
		records = append(records, models.VectorRecord{ID: v.ID})
	}
	return records, resp.Pagination.Next, nil
}

type fetchResponse struct {
	Vectors map[string]struct {
		ID       string                 `json:"id"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"vectors"`
}

func (p *PineconeIndex) Fetch(ctx context.Context, ids []string) (map[string]models.VectorRecord, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	if p.namespace != "" {
		q.Set("namespace", p.namespace)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/vectors/fetch?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)

	var resp fetchResponse
	if err := p.do(req, &resp); err != nil {
		return nil, errors.NewVectorFetchFailedError(err)
	}

	records := make(map[string]models.VectorRecord, len(resp.Vectors))
	for id, v := range resp.Vectors {
		records[id] = models.VectorRecord{ID: id, Metadata: v.Metadata}
	}
	return records, nil
}

func (p *PineconeIndex) setHeaders(req *http.Request) {
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func (p *PineconeIndex) do(req *http.Request, out interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("index returned %d: %s", resp.StatusCode, string(payload))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
