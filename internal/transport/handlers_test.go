package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func TestIngestHandler_HealthCheck(t *testing.T) {
	r := gin.New()
	h := NewIngestHandler(nil)

	r.GET("/health", func(c *gin.Context) {
		h.HealthCheck((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
}

func newMultipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := w.CreateFormFile(name, "1.png")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/floorplans/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func uploadFields() map[string]string {
	return map[string]string{
		"user_id":        "u1",
		"project_number": "P-1",
		"floor_number":   "3",
	}
}

func TestIngestHandler_Upload(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		mock       *mockIngestService
		wantStatus int
		wantCType  string
	}{
		{
			name: "push mode returns zip",
			req: newMultipartRequest(t,
				uploadFields(),
				map[string][]byte{"images": []byte("img")},
			),
			mock: &mockIngestService{
				ingestFn: func(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error) {
					require.Equal(t, "u1", raw.Tenant)
					require.NotNil(t, raw.Image)
					return &model.IngestResult{
						Key:      model.WorkKey{Tenant: "u1", Project: "P-1", Floor: "3", ImageID: "1"},
						Delivery: model.DeliveryArchive,
						Archive:  []byte("zip-bytes"),
					}, nil
				},
			},
			wantStatus: 200,
			wantCType:  "application/zip",
		},
		{
			name: "manifest mode returns ack",
			req: newMultipartRequest(t,
				uploadFields(),
				map[string][]byte{"images": []byte("img")},
			),
			mock: &mockIngestService{
				ingestFn: func(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error) {
					return &model.IngestResult{
						Key:      model.WorkKey{Tenant: "u1", Project: "P-1", Floor: "3", ImageID: "1"},
						Delivery: model.DeliveryManifest,
						Manifest: &model.Manifest{ImageName: "1.png", ArchiveKey: "results/u1/a.zip"},
					}, nil
				},
			},
			wantStatus: 200,
			wantCType:  "application/json; charset=utf-8",
		},
		{
			name: "missing image file",
			req: newMultipartRequest(t,
				uploadFields(),
				nil,
			),
			mock:       &mockIngestService{},
			wantStatus: 400,
		},
		{
			name: "validation error from service",
			req: newMultipartRequest(t,
				map[string]string{"user_id": "u1"},
				map[string][]byte{"images": []byte("img")},
			),
			mock: &mockIngestService{
				ingestFn: func(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error) {
					return nil, model.ErrMissingFields
				},
			},
			wantStatus: 400,
		},
		{
			name: "processing failure",
			req: newMultipartRequest(t,
				uploadFields(),
				map[string][]byte{"images": []byte("img")},
			),
			mock: &mockIngestService{
				ingestFn: func(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error) {
					return nil, model.ErrProcessingFailed
				},
			},
			wantStatus: 502,
		},
		{
			name: "ledger down",
			req: newMultipartRequest(t,
				uploadFields(),
				map[string][]byte{"images": []byte("img")},
			),
			mock: &mockIngestService{
				ingestFn: func(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error) {
					return nil, model.ErrLedgerUnavailable
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewIngestHandler(tt.mock)

			r.POST("/floorplans/upload", func(c *gin.Context) {
				h.Upload((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCType != "" {
				require.Equal(t, tt.wantCType, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestIngestHandler_DrainResults(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockIngestService
		wantStatus int
		wantLen    int
	}{
		{
			name: "pending manifests",
			mock: &mockIngestService{
				drainFn: func(ctx context.Context, tenant string) ([]model.Manifest, error) {
					require.Equal(t, "u1", tenant)
					return []model.Manifest{{ImageName: "1.png"}, {ImageName: "2.png"}}, nil
				},
			},
			wantStatus: 200,
			wantLen:    2,
		},
		{
			name: "empty queue is 200 with empty list",
			mock: &mockIngestService{
				drainFn: func(ctx context.Context, tenant string) ([]model.Manifest, error) {
					return []model.Manifest{}, nil
				},
			},
			wantStatus: 200,
			wantLen:    0,
		},
		{
			name: "service error",
			mock: &mockIngestService{
				drainFn: func(ctx context.Context, tenant string) ([]model.Manifest, error) {
					return nil, model.ErrCommon500
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewIngestHandler(tt.mock)

			r.GET("/results/:user_id", func(c *gin.Context) {
				h.DrainResults((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/results/u1", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == 200 {
				var body []model.Manifest
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				require.Len(t, body, tt.wantLen)
			}
		})
	}
}

func TestIngestHandler_TenantsWithPending(t *testing.T) {
	r := gin.New()
	h := NewIngestHandler(&mockIngestService{
		tenantsFn: func(ctx context.Context) ([]string, error) {
			return []string{"u1", "u2"}, nil
		},
	})

	r.GET("/results", func(c *gin.Context) {
		h.TenantsWithPending((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/results", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, []string{"u1", "u2"}, body["users_with_results"])
}

func TestIngestHandler_LoadArchive(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockIngestService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockIngestService{
				archiveFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
					require.Equal(t, "results/u1/a.zip", key)
					return io.NopCloser(bytes.NewReader([]byte("zip"))), "application/zip", nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "not found",
			mock: &mockIngestService{
				archiveFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
					return nil, "", model.ErrArchiveNotFound
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewIngestHandler(tt.mock)

			r.GET("/results/archive/*key", func(c *gin.Context) {
				h.LoadArchive((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/results/archive/results/u1/a.zip", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
