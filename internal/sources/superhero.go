package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/errors"
	httpclient "asset-workers/internal/common/http"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/common/metrics"
	"asset-workers/internal/models"
)

const superheroConfidence = 0.85

// SuperheroClient queries the SuperheroAPI character database. The API
// token is part of the URL path.
type SuperheroClient struct {
	baseURL string
	token   string
	client  *httpclient.Client
	logger  logger.Logger
}

func NewSuperheroClient(cfg config.SuperheroAPIConfig, log logger.Logger) *SuperheroClient {
	return &SuperheroClient{
		baseURL: cfg.BaseURL,
		token:   cfg.APIKey,
		client:  httpclient.NewClient(config.GetDuration(cfg.Timeout)),
		logger:  log,
	}
}

func (s *SuperheroClient) Name() string { return "superhero_api" }

type superheroResponse struct {
	Response string `json:"response"`
	Results  []struct {
		ID        string `json:"id"`
		Biography struct {
			FullName        string `json:"full-name"`
			FirstAppearance string `json:"first-appearance"`
			Publisher       string `json:"publisher"`
		} `json:"biography"`
		Appearance struct {
			Gender    string   `json:"gender"`
			Height    []string `json:"height"`
			Weight    []string `json:"weight"`
			EyeColor  string   `json:"eye-color"`
			HairColor string   `json:"hair-color"`
		} `json:"appearance"`
		Powerstats  map[string]string `json:"powerstats"`
		Connections struct {
			GroupAffiliation string `json:"group-affiliation"`
		} `json:"connections"`
		Image struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"results"`
}

// Lookup tries each search term in order and returns the first hit.
// Terms that fail keep the walk going; only exhausting every term
// without a hit yields a nil result.
func (s *SuperheroClient) Lookup(ctx context.Context, searchTerms []string) (*models.DataSourceResult, error) {
	if s.token == "" {
		return nil, nil
	}

	for _, term := range searchTerms {
		result, err := s.search(ctx, term)
		if err != nil {
			s.logger.Debug("Superhero search term failed", map[string]interface{}{
				"term":  term,
				"error": err.Error(),
			})
			continue
		}
		if result != nil {
			metrics.SourceRequests.WithLabelValues(s.Name(), "hit").Inc()
			return result, nil
		}
	}

	metrics.SourceRequests.WithLabelValues(s.Name(), "miss").Inc()
	return nil, nil
}

func (s *SuperheroClient) search(ctx context.Context, term string) (*models.DataSourceResult, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%s", s.baseURL, s.token, url.PathEscape(term))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NewExternalAPIFailedError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalAPIFailedError(s.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed superheroResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewExternalAPIFailedError(s.Name(), err)
	}

	if parsed.Response != "success" || len(parsed.Results) == 0 {
		return nil, nil
	}

	hero := parsed.Results[0]

	var powers []string
	for stat, value := range hero.Powerstats {
		if value == "null" || value == "" {
			continue
		}
		powers = append(powers, fmt.Sprintf("%s: %s", stat, value))
	}

	data := map[string]interface{}{
		"realName":   hero.Biography.FullName,
		"biography":  hero.Biography.FirstAppearance,
		"publisher":  hero.Biography.Publisher,
		"gender":     hero.Appearance.Gender,
		"eyeColor":   hero.Appearance.EyeColor,
		"hairColor":  hero.Appearance.HairColor,
		"imageUrl":   hero.Image.URL,
		"externalId": hero.ID,
	}
	if len(hero.Appearance.Height) > 1 {
		data["height"] = hero.Appearance.Height[1]
	}
	if len(hero.Appearance.Weight) > 1 {
		data["weight"] = hero.Appearance.Weight[1]
	}
	if affiliation := hero.Connections.GroupAffiliation; affiliation != "" {
		data["allies"] = strings.Split(affiliation, ", ")
	}
	if len(powers) > 0 {
		data["powers"] = powers
	}

	return &models.DataSourceResult{
		Name:       s.Name(),
		Confidence: superheroConfidence,
		Data:       pruneEmpty(data),
	}, nil
}

// pruneEmpty drops nil and empty-string fields so merging never treats
// an absent value as a real one.
func pruneEmpty(data map[string]interface{}) map[string]interface{} {
	for k, v := range data {
		if v == nil || v == "" {
			delete(data, k)
		}
	}
	return data
}
