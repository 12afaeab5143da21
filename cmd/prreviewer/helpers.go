package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wesm/prreviewer/internal/statestore"
	"github.com/wesm/prreviewer/internal/statestore/githubstore"
	"github.com/wesm/prreviewer/internal/statestore/pgstore"
	"github.com/wesm/prreviewer/internal/statestore/sqlitestore"
)

// exitError is an error that signals a specific exit code.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// openStore builds the Review State Store backend named by --store,
// reading connection details from flags or the environment the way
// each backend's own constructor expects them.
func openStore(ctx context.Context, backend, dsn string) (statestore.Store, func(), error) {
	switch backend {
	case "sqlite":
		if dsn == "" {
			dsn = "prreviewer.db"
		}
		store, err := sqlitestore.Open(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store at %s: %w", dsn, err)
		}
		return store, func() { store.Close() }, nil

	case "postgres":
		if dsn == "" {
			return nil, nil, fmt.Errorf("--dsn is required for --store=postgres")
		}
		store, err := pgstore.Open(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, func() { store.Close() }, nil

	case "github":
		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			return nil, nil, fmt.Errorf("GITHUB_TOKEN must be set for --store=github")
		}
		client := githubstore.NewClient(token)
		return client, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown --store %q (want sqlite, postgres, or github)", backend)
	}
}
