package sources

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/errors"
	httpclient "asset-workers/internal/common/http"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/common/metrics"
	"asset-workers/internal/models"
)

const marvelConfidence = 0.95

// MarvelClient queries the Marvel developer API. Every request is
// signed with ts/apikey/hash query params where
// hash = MD5(ts + privateKey + publicKey).
type MarvelClient struct {
	baseURL    string
	publicKey  string
	privateKey string
	client     *httpclient.Client
	logger     logger.Logger
	now        func() time.Time
}

func NewMarvelClient(cfg config.MarvelAPIConfig, log logger.Logger) *MarvelClient {
	return &MarvelClient{
		baseURL:    cfg.BaseURL,
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		client:     httpclient.NewClient(config.GetDuration(cfg.Timeout)),
		logger:     log,
		now:        time.Now,
	}
}

func (m *MarvelClient) Name() string { return "marvel" }

type marvelResponse struct {
	Data struct {
		Results []struct {
			ID          int    `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Thumbnail   *struct {
				Path      string `json:"path"`
				Extension string `json:"extension"`
			} `json:"thumbnail"`
			Comics struct {
				Items []struct {
					Name string `json:"name"`
				} `json:"items"`
			} `json:"comics"`
			Series struct {
				Items []struct {
					Name string `json:"name"`
				} `json:"items"`
			} `json:"series"`
		} `json:"results"`
	} `json:"data"`
}

// Lookup queries by exact character name, using the canonical name
// (the first search term).
func (m *MarvelClient) Lookup(ctx context.Context, searchTerms []string) (*models.DataSourceResult, error) {
	if m.publicKey == "" || m.privateKey == "" || len(searchTerms) == 0 {
		return nil, nil
	}

	ts := strconv.FormatInt(m.now().UnixMilli(), 10)
	sum := md5.Sum([]byte(ts + m.privateKey + m.publicKey))
	hash := hex.EncodeToString(sum[:])

	q := url.Values{}
	q.Set("name", searchTerms[0])
	q.Set("ts", ts)
	q.Set("apikey", m.publicKey)
	q.Set("hash", hash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/characters?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		metrics.SourceRequests.WithLabelValues(m.Name(), "error").Inc()
		return nil, errors.NewExternalAPIFailedError(m.Name(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.SourceRequests.WithLabelValues(m.Name(), "error").Inc()
		return nil, errors.NewExternalAPIUnauthorizedError(m.Name(), resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.SourceRequests.WithLabelValues(m.Name(), "error").Inc()
		return nil, errors.NewRateLimitedError(m.Name())
	case resp.StatusCode != http.StatusOK:
		metrics.SourceRequests.WithLabelValues(m.Name(), "error").Inc()
		return nil, errors.NewExternalAPIFailedError(m.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed marvelResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewExternalAPIFailedError(m.Name(), err)
	}

	if len(parsed.Data.Results) == 0 {
		metrics.SourceRequests.WithLabelValues(m.Name(), "miss").Inc()
		return nil, nil
	}

	character := parsed.Data.Results[0]

	data := map[string]interface{}{
		"realName":   character.Name,
		"biography":  character.Description,
		"publisher":  "Marvel Comics",
		"externalId": strconv.Itoa(character.ID),
	}
	if len(character.Comics.Items) > 0 {
		data["firstAppearance"] = character.Comics.Items[0].Name
	}
	if len(character.Series.Items) > 0 {
		teams := make([]string, 0, len(character.Series.Items))
		for _, item := range character.Series.Items {
			teams = append(teams, item.Name)
		}
		data["teams"] = teams
	}
	if character.Thumbnail != nil {
		data["imageUrl"] = character.Thumbnail.Path + "." + character.Thumbnail.Extension
	}

	metrics.SourceRequests.WithLabelValues(m.Name(), "hit").Inc()
	return &models.DataSourceResult{
		Name:       m.Name(),
		Confidence: marvelConfidence,
		Data:       pruneEmpty(data),
	}, nil
}
