package main

import (
	"context"
	"io"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
)

type FloorPlanRepository interface {
	IsProcessed(ctx context.Context, key model.WorkKey) (bool, error)
	MarkProcessed(ctx context.Context, key model.WorkKey) error
	Append(ctx context.Context, m *model.Manifest) error
	Drain(ctx context.Context, tenant string) ([]model.Manifest, error)
	TenantsWithPending(ctx context.Context) ([]string, error)
}
type FloorPlanService interface {
	Ingest(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error)
	DrainResults(ctx context.Context, tenant string) ([]model.Manifest, error)
	TenantsWithPending(ctx context.Context) ([]string, error)
	LoadArchive(ctx context.Context, key string) (io.ReadCloser, string, error)
}
