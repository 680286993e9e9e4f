package library

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
)

// IngestReport summarizes one directory ingestion run
type IngestReport struct {
	RunID    uuid.UUID `json:"run_id"`
	Scanned  int       `json:"scanned"`
	Ingested int       `json:"ingested"`
	Failed   int       `json:"failed"`
}

// IngestDirectory ingests every accepted file below dir. A file that cannot be
// ingested is logged and counted; it never stops the run. Only a failure to read
// dir itself or a cancelled context returns an error.
func (l *Library) IngestDirectory(ctx context.Context, dir string, recursive bool) (*IngestReport, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve '%s': %w", dir, err)
	}

	report := &IngestReport{RunID: uuid.New()}
	runLog := l.log.Named(report.RunID.String()[:8])
	runLog.Info("Ingesting '%s' (recursive: %t)", root, recursive)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			runLog.Warn("Skipping '%s': %v", path, err)
			report.Failed++
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !l.Accepts(path) {
			return nil
		}

		report.Scanned++
		if err := l.IngestFile(ctx, path); err != nil {
			runLog.Warn("Failed to ingest '%s': %v", path, err)
			report.Failed++
			return nil
		}
		report.Ingested++
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to ingest '%s': %w", root, err)
	}

	runLog.Info("Ingested %d of %d files from '%s' (%d failed)", report.Ingested, report.Scanned, root, report.Failed)
	return report, nil
}
