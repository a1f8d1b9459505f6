package sources

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
)

func TestSuperheroLookup_FirstTermHit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token-123/search/Spider-Man", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "success",
			"results": []map[string]interface{}{{
				"id": "620",
				"biography": map[string]interface{}{
					"full-name":        "Peter Parker",
					"first-appearance": "Amazing Fantasy #15",
					"publisher":        "Marvel Comics",
				},
				"appearance": map[string]interface{}{
					"gender": "Male",
					"height": []string{"6'2", "188 cm"},
					"weight": []string{"225 lb", "101 kg"},
				},
				"powerstats":  map[string]string{"strength": "55", "speed": "null"},
				"connections": map[string]interface{}{"group-affiliation": "Avengers, Daily Bugle"},
				"image":       map[string]interface{}{"url": "https://img/spidey.jpg"},
			}},
		})
	}))
	defer server.Close()

	client := NewSuperheroClient(config.SuperheroAPIConfig{
		BaseURL: server.URL, APIKey: "token-123", Timeout: 5000,
	}, logger.NewTestLogger(t))

	result, err := client.Lookup(context.Background(), []string{"Spider-Man", "Spiderman"})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "superhero_api", result.Name)
	assert.Equal(t, 0.85, result.Confidence)
	assert.Equal(t, "Peter Parker", result.Data["realName"])
	assert.Equal(t, "Amazing Fantasy #15", result.Data["biography"])
	assert.Equal(t, "188 cm", result.Data["height"])
	assert.Equal(t, []string{"Avengers", "Daily Bugle"}, result.Data["allies"])
	// "null" powerstats are dropped.
	assert.Equal(t, []string{"strength: 55"}, result.Data["powers"])
}

func TestSuperheroLookup_FallsThroughTerms(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) < 3 {
			json.NewEncoder(w).Encode(map[string]interface{}{"response": "error"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "success",
			"results": []map[string]interface{}{{
				"id":        "1",
				"biography": map[string]interface{}{"full-name": "Bruce Wayne"},
			}},
		})
	}))
	defer server.Close()

	client := NewSuperheroClient(config.SuperheroAPIConfig{
		BaseURL: server.URL, APIKey: "tok", Timeout: 5000,
	}, logger.NewTestLogger(t))

	result, err := client.Lookup(context.Background(), []string{"The Batman", "Bat-Man", "Batman"})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Bruce Wayne", result.Data["realName"])
	assert.Len(t, paths, 3)
}

func TestSuperheroLookup_NoHitIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "error", "error": "character not found"})
	}))
	defer server.Close()

	client := NewSuperheroClient(config.SuperheroAPIConfig{
		BaseURL: server.URL, APIKey: "tok", Timeout: 5000,
	}, logger.NewTestLogger(t))

	result, err := client.Lookup(context.Background(), []string{"Nobody"})

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSuperheroLookup_MissingTokenSkips(t *testing.T) {
	client := NewSuperheroClient(config.SuperheroAPIConfig{BaseURL: "http://unused", Timeout: 5000}, logger.NewTestLogger(t))

	result, err := client.Lookup(context.Background(), []string{"Hulk"})

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestMarvelLookup_SignsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Spider-Man", q.Get("name"))
		assert.Equal(t, "pub", q.Get("apikey"))

		sum := md5.Sum([]byte(q.Get("ts") + "priv" + "pub"))
		assert.Equal(t, hex.EncodeToString(sum[:]), q.Get("hash"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"results": []map[string]interface{}{{
					"id":          1009610,
					"name":        "Spider-Man",
					"description": "Bitten by a radioactive spider",
					"thumbnail":   map[string]string{"path": "https://img/spidey", "extension": "jpg"},
					"comics": map[string]interface{}{
						"items": []map[string]string{{"name": "Amazing Fantasy (1962) #15"}},
					},
					"series": map[string]interface{}{
						"items": []map[string]string{{"name": "Avengers"}, {"name": "Spider-Verse"}},
					},
				}},
			},
		})
	}))
	defer server.Close()

	client := NewMarvelClient(config.MarvelAPIConfig{
		BaseURL: server.URL, PublicKey: "pub", PrivateKey: "priv", Timeout: 5000,
	}, logger.NewTestLogger(t))
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }

	result, err := client.Lookup(context.Background(), []string{"Spider-Man", "Spidey"})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "marvel", result.Name)
	assert.Equal(t, 0.95, result.Confidence)
	assert.Equal(t, "Amazing Fantasy (1962) #15", result.Data["firstAppearance"])
	assert.Equal(t, []string{"Avengers", "Spider-Verse"}, result.Data["teams"])
	assert.Equal(t, "https://img/spidey.jpg", result.Data["imageUrl"])
	assert.Equal(t, "Marvel Comics", result.Data["publisher"])
}

func TestMarvelLookup_UnauthorizedIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"InvalidCredentials"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewMarvelClient(config.MarvelAPIConfig{
		BaseURL: server.URL, PublicKey: "pub", PrivateKey: "priv", Timeout: 5000,
	}, logger.NewTestLogger(t))

	_, err := client.Lookup(context.Background(), []string{"Thor"})

	require.Error(t, err)
	assert.False(t, errors.IsRetryable(err))
}

func TestMarvelLookup_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"results": []interface{}{}},
		})
	}))
	defer server.Close()

	client := NewMarvelClient(config.MarvelAPIConfig{
		BaseURL: server.URL, PublicKey: "pub", PrivateKey: "priv", Timeout: 5000,
	}, logger.NewTestLogger(t))

	result, err := client.Lookup(context.Background(), []string{"Obscuro"})

	require.NoError(t, err)
	assert.Nil(t, result)
}

type flakySource struct {
	name     string
	failures int
	calls    int
	err      error
}

func (f *flakySource) Name() string { return f.name }

func (f *flakySource) Lookup(ctx context.Context, terms []string) (*models.DataSourceResult, error) {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.NewExternalAPIFailedError(f.name, fmt.Errorf("transient"))
	}
	return &models.DataSourceResult{Name: f.name, Confidence: 0.85}, nil
}

func TestWithRetry_RecoversFromTransientFailure(t *testing.T) {
	source := &flakySource{name: "superhero_api", failures: 2}

	result := WithRetry(context.Background(), source, []string{"Hulk"}, 3, logger.NewTestLogger(t))

	require.NoError(t, result.Err)
	require.NotNil(t, result.Data)
	assert.Equal(t, 3, result.Attempts)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	source := &flakySource{name: "superhero_api", failures: 10}

	result := WithRetry(context.Background(), source, []string{"Hulk"}, 2, logger.NewTestLogger(t))

	require.Error(t, result.Err)
	assert.Nil(t, result.Data)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, source.calls)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	source := &flakySource{
		name:     "marvel",
		failures: 10,
		err:      errors.NewExternalAPIUnauthorizedError("marvel", 401),
	}

	result := WithRetry(context.Background(), source, []string{"Thor"}, 3, logger.NewTestLogger(t))

	require.Error(t, result.Err)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, source.calls)
}

func TestWithRetry_MissIsSuccess(t *testing.T) {
	source := &flakySource{name: "superhero_api"}
	source.failures = 0

	result := WithRetry(context.Background(), source, nil, 3, logger.NewTestLogger(t))

	assert.NoError(t, result.Err)
	assert.Equal(t, 1, result.Attempts)
}
