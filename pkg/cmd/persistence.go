// Package cmd provides common initialization functions for the binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/platewatch/platewatch/pkg/persistence"
	"github.com/platewatch/platewatch/pkg/persistence/file"
	"github.com/platewatch/platewatch/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence backend by the database URL scheme.
// postgres://... gets the SQL backend; anything else is treated as a file
// root path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
