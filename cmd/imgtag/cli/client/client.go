package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	config "github.com/mwantia/imgtag/internal/config/server"
	"github.com/mwantia/imgtag/internal/library"
	"github.com/mwantia/imgtag/internal/metadata"
	"github.com/mwantia/imgtag/pkg/db/store"
	"github.com/mwantia/imgtag/pkg/log"
)

// openLibrary loads the configuration and opens a migrated library.
// The caller must call the returned close function.
func openLibrary(ctx context.Context) (*library.Library, func() error, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	s, err := store.NewStoreFromConfig(cfg.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metadata store: %w", err)
	}
	if err := s.Connect(ctx); err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("failed to migrate metadata store: %w", err)
	}

	logger := log.NewLoggerService("imgtag", cfg.Log)
	return library.New(s, logger, metadata.NewPNGExtractor(), cfg.Library), s.Close, nil
}

// withLibrary runs fn against an opened library and closes it afterwards
func withLibrary(cmd *cobra.Command, fn func(ctx context.Context, lib *library.Library) error) error {
	lib, closeFn, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(cmd.Context(), lib)
}

func printLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
