package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/gin-gonic/gin"
)

type mockIngestService struct {
	ingestFn  func(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error)
	drainFn   func(ctx context.Context, tenant string) ([]model.Manifest, error)
	tenantsFn func(ctx context.Context) ([]string, error)
	archiveFn func(ctx context.Context, key string) (io.ReadCloser, string, error)
}

func (m *mockIngestService) Ingest(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error) {
	return m.ingestFn(ctx, raw)
}

func (m *mockIngestService) DrainResults(ctx context.Context, tenant string) ([]model.Manifest, error) {
	return m.drainFn(ctx, tenant)
}

func (m *mockIngestService) TenantsWithPending(ctx context.Context) ([]string, error) {
	return m.tenantsFn(ctx)
}

func (m *mockIngestService) LoadArchive(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.archiveFn(ctx, key)
}

func init() {
	gin.SetMode(gin.TestMode)
}
