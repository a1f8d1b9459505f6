package vector

import (
	"context"
	"math"
	"strings"
	"time"

	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
)

// Corpus categories as stored in vector metadata.
const (
	CategoryCharacters = "Characters"
	CategoryCreators   = "Creators"
	CategoryComics     = "Comics"
)

// diversityQueries fan each category out over several phrasings so a
// single similarity neighborhood does not dominate the sample.
var diversityQueries = map[string][]string{
	CategoryCharacters: {
		"Marvel superhero character Spider-Man Batman",
		"DC character powers abilities origin story",
		"comic book hero villain mutant team",
		"X-Men Avengers Justice League character profile",
	},
	CategoryCreators: {
		"comic book artist writer Stan Lee Jack Kirby",
		"penciler inker colorist letterer creator",
		"Marvel DC artist illustrator author",
		"comic book creator biography portfolio",
	},
	CategoryComics: {
		"comic book issue #1 Amazing Spider-Man",
		"Detective Comics Action Comics series",
		"Marvel comic book publication volume",
		"X-Men comic issue story arc event",
	},
}

const (
	listPageSize = 100
	// Pause between listing pages so the index is not hammered.
	listBatchDelay = 50 * time.Millisecond
	fetchBatchSize = 100
)

// Client combines the index and the embedder into the sampling and
// listing operations the expansion workers consume.
type Client struct {
	index    Index
	embedder Embedder
	logger   logger.Logger
}

func NewClient(index Index, embedder Embedder, log logger.Logger) *Client {
	return &Client{
		index:    index,
		embedder: embedder,
		logger:   log,
	}
}

// InNamespace returns a client whose index calls target the given
// namespace. The empty string keeps the configured namespace.
func (c *Client) InNamespace(namespace string) *Client {
	if namespace == "" {
		return c
	}
	scoped := *c
	scoped.index = c.index.WithNamespace(namespace)
	return &scoped
}

// SampleDiverse returns up to limit records for a category, spread
// across the category's diversity queries and deduplicated by ID.
// Query failures degrade the sample instead of failing it; only a
// fully empty result set is reported as empty.
func (c *Client) SampleDiverse(ctx context.Context, category string, limit int) ([]models.VectorRecord, error) {
	queries, ok := diversityQueries[category]
	if !ok {
		return nil, nil
	}

	perQuery := int(math.Ceil(float64(limit) / float64(len(queries))))
	seen := make(map[string]struct{})
	var records []models.VectorRecord

	for _, query := range queries {
		embedding, err := c.embedder.Embed(ctx, query)
		if err != nil {
			c.logger.Warn("Embedding failed for diversity query", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
			continue
		}

		matches, err := c.index.Query(ctx, embedding, perQuery)
		if err != nil {
			c.logger.Warn("Similarity query failed", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
			continue
		}

		for _, match := range matches {
			if _, dup := seen[match.ID]; dup {
				continue
			}
			if !matchesCategory(category, match.ID, match.Metadata) {
				continue
			}
			seen[match.ID] = struct{}{}
			records = append(records, models.VectorRecord{ID: match.ID, Metadata: match.Metadata})
		}
	}

	c.logger.Info("Sampled diverse records", map[string]interface{}{
		"category": category,
		"count":    len(records),
	})

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListAll walks the whole index via pagination and returns every
// vector ID.
func (c *Client) ListAll(ctx context.Context) ([]models.VectorRecord, error) {
	var all []models.VectorRecord

	records, token, err := c.index.ListPaginated(ctx, listPageSize, "")
	if err != nil {
		return nil, err
	}
	all = append(all, records...)

	for token != "" {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(listBatchDelay):
		}

		records, token, err = c.index.ListPaginated(ctx, listPageSize, token)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	return all, nil
}

// ListAllRecords walks the whole index and resolves metadata for every
// listed ID. Listing only yields IDs, so a fetch pass is required before
// the records are usable downstream; IDs the fetch cannot resolve are
// dropped.
func (c *Client) ListAllRecords(ctx context.Context) ([]models.VectorRecord, error) {
	listed, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(listed))
	for _, record := range listed {
		ids = append(ids, record.ID)
	}

	byID, err := c.FetchAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	records := make([]models.VectorRecord, 0, len(ids))
	for _, id := range ids {
		if record, ok := byID[id]; ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// FetchAll resolves metadata for a set of IDs in batches.
func (c *Client) FetchAll(ctx context.Context, ids []string) (map[string]models.VectorRecord, error) {
	out := make(map[string]models.VectorRecord, len(ids))

	for start := 0; start < len(ids); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		batch, err := c.index.Fetch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		for id, record := range batch {
			out[id] = record
		}
	}

	return out, nil
}

func matchesCategory(category, id string, metadata map[string]interface{}) bool {
	switch category {
	case CategoryCharacters, CategoryCreators:
		return metadataString(metadata, "category") == category
	case CategoryComics:
		return metadataString(metadata, "type") == "comics" ||
			strings.HasPrefix(id, "comics_") || strings.HasPrefix(id, "stories_")
	}
	return false
}

// InferCategory classifies a record by its metadata, falling back to
// the ID prefix convention used by the ingest jobs.
func InferCategory(record models.VectorRecord) string {
	if cat := metadataString(record.Metadata, "category"); cat == CategoryCharacters || cat == CategoryCreators || cat == CategoryComics {
		return cat
	}
	if metadataString(record.Metadata, "type") == "comics" {
		return CategoryComics
	}

	switch {
	case strings.HasPrefix(record.ID, "characters_"):
		return CategoryCharacters
	case strings.HasPrefix(record.ID, "creators_"):
		return CategoryCreators
	case strings.HasPrefix(record.ID, "comics_"), strings.HasPrefix(record.ID, "stories_"):
		return CategoryComics
	}
	return ""
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
