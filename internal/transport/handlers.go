// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type IngestHandler struct {
	service IngestService
}

type IngestService interface {
	Ingest(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error)    // принять аплоад, прогнать через пайплайн
	DrainResults(ctx context.Context, tenant string) ([]model.Manifest, error)         // забрать и очистить очередь манифестов
	TenantsWithPending(ctx context.Context) ([]string, error)                          // у кого лежат неразобранные результаты
	LoadArchive(ctx context.Context, key string) (io.ReadCloser, string, error)        // прям скачать сохраненный бандл
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{
		service: svc,
	}
}

func (h IngestHandler) HealthCheck(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"status": "healthy"})
}

func (h IngestHandler) Upload(ctx *ginext.Context) {
	var raw model.UploadData
	raw.Tenant = ctx.PostForm("user_id")
	raw.Project = ctx.PostForm("project_number")
	raw.Floor = ctx.PostForm("floor_number")
	raw.Delivery = ctx.PostForm("delivery")

	// парсинг исходника
	imageFile, imageHeader, err := ctx.Request.FormFile("images")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "images file is required"})
		return
	}
	defer closeFileFlow(imageFile)

	raw.Image = imageFile
	raw.ImageName = imageHeader.Filename
	raw.ContentType = imageHeader.Header.Get("Content-Type")
	raw.ImageSize = imageHeader.Size

	// передаем в сервис
	res, err := h.service.Ingest(ctx.Request.Context(), &raw)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	switch res.Delivery {
	case model.DeliveryManifest:
		ctx.JSON(200, map[string]any{
			"message":        "Inference results ready",
			"user_id":        res.Key.Tenant,
			"project_number": res.Key.Project,
			"floor_number":   res.Key.Floor,
			"image_name":     res.Manifest.ImageName,
			"archive_key":    res.Manifest.ArchiveKey,
			"deduplicated":   res.Deduplicated,
		})
	default:
		name := res.Key.Tenant + "_" + res.Key.Project + "_floor_" + res.Key.Floor + ".zip"
		ctx.Writer.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		ctx.Data(200, "application/zip", res.Archive)
	}
}

func (h IngestHandler) DrainResults(ctx *ginext.Context) {
	tenant := ctx.Param("user_id")

	res, err := h.service.DrainResults(ctx.Request.Context(), tenant)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	// пустая очередь - это 200 с пустым списком, а не ошибка
	ctx.JSON(200, res)
}

func (h IngestHandler) TenantsWithPending(ctx *ginext.Context) {
	res, err := h.service.TenantsWithPending(ctx.Request.Context())
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, map[string][]string{"users_with_results": res})
}

func (h IngestHandler) LoadArchive(ctx *ginext.Context) {
	key := strings.TrimPrefix(ctx.Param("key"), "/")

	res, cType, err := h.service.LoadArchive(ctx.Request.Context(), key)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for archive %q: %v", n, key, err)
	}
}
