// Package sources wraps the external character databases consulted
// during entity verification.
package sources

import (
	"context"

	"asset-workers/internal/models"
)

// Source is one external data provider. Lookup returns nil without an
// error when the provider has no record for the entity; errors are
// reserved for transport and credential failures.
type Source interface {
	Name() string
	Lookup(ctx context.Context, searchTerms []string) (*models.DataSourceResult, error)
}
