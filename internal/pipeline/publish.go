package pipeline

import (
	"context"
	"fmt"

	"mspro-labs/city-pulse/internal/db"
	"mspro-labs/city-pulse/internal/export"
	"mspro-labs/city-pulse/internal/models"
)

// PublishOptions say where a run's Records go.
type PublishOptions struct {
	TabularPath string
	// Store is optional; a nil Store skips the table export.
	Store   db.Store
	Summary Summary
}

// PublishReport is what Publish managed to write.
type PublishReport struct {
	TabularPath string
	TableKind   string
	TableRows   int64
	TableErr    error
	HistoryErr  error
}

// Publish writes the tabular file first; its failure is the returned error.
// The table export runs after and its failure is only reported, so the
// tabular file always survives. The run is then added to the history.
func Publish(ctx context.Context, records []models.Record, opts PublishOptions) (*PublishReport, error) {
	rep := &PublishReport{TabularPath: opts.TabularPath}

	if err := export.WriteFile(opts.TabularPath, records); err != nil {
		return rep, fmt.Errorf("tabular export failed: %w", err)
	}
	logger.Printf("Wrote %d records to %s", len(records), opts.TabularPath)

	if opts.Store == nil {
		return rep, nil
	}
	rep.TableKind = opts.Store.Kind()

	n, err := opts.Store.SaveRecords(ctx, opts.Summary.Location, records)
	if err != nil {
		logger.Printf("WARN: table export to %s failed: %v", rep.TableKind, err)
		rep.TableErr = err
	} else {
		rep.TableRows = n
		logger.Printf("Upserted %d rows into %s table", n, rep.TableKind)
	}

	run := db.Run{
		ID:         opts.Summary.RunID,
		Location:   opts.Summary.Location,
		Categories: opts.Summary.Categories,
		Fetched:    opts.Summary.Fetched,
		Rejected:   opts.Summary.Rejected,
		Unique:     opts.Summary.Unique,
		Failed:     len(opts.Summary.Failed),
		Output:     opts.TabularPath,
		StartedAt:  opts.Summary.StartedAt,
	}
	for _, s := range opts.Summary.Sources {
		run.Sources = append(run.Sources, string(s))
	}
	if rep.TableErr != nil {
		run.TableErr = rep.TableErr.Error()
	}
	if err := opts.Store.RecordRun(ctx, run); err != nil {
		logger.Printf("WARN: %v", err)
		rep.HistoryErr = err
	}
	return rep, nil
}
