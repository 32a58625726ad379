// Package processor talks to the external floor-plan inference service.
// Модель для нас - черный ящик: отдали исходник, получили набор файлов-артефактов.
package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
)

// FloorProcessor - контракт внешней операции обработки
type FloorProcessor interface {
	Process(ctx context.Context, key model.WorkKey, originalPath string, outDir string) error
}

// ModelClient - HTTP-клиент сайдкара с моделью. Запрос - multipart с исходником,
// ответ - zip с артефактами, который раскладывается в дерево задачи.
type ModelClient struct {
	baseURL string
	client  *http.Client
}

func NewModelClient(baseURL string, timeout time.Duration) *ModelClient {
	return &ModelClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (m *ModelClient) Process(ctx context.Context, key model.WorkKey, originalPath string, outDir string) error {
	src, err := os.Open(originalPath)
	if err != nil {
		return fmt.Errorf("failed to open original image %q: %w", originalPath, err)
	}
	defer closeFileFlow(src)

	// собираем multipart-запрос к модели
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"user_id":        key.Tenant,
		"project_number": key.Project,
		"floor_number":   key.Floor,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to build model request: %w", err)
		}
	}

	fw, err := mw.CreateFormFile("images", filepath.Base(originalPath))
	if err != nil {
		return fmt.Errorf("failed to build model request: %w", err)
	}
	if _, err := io.Copy(fw, src); err != nil {
		return fmt.Errorf("failed to copy image into model request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/process", &body)
	if err != nil {
		return fmt.Errorf("failed to create model request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("model request failed: %w", err)
	}
	defer closeFileFlow(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model responded with status %d", resp.StatusCode)
	}

	// ответ - zip с файлами артефактов, раскладываем под корень задачи
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read model response: %w", err)
	}

	return unpackArtifacts(payload, outDir)
}

func unpackArtifacts(payload []byte, outDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return fmt.Errorf("model response is not a valid zip: %w", err)
	}

	cleanRoot := filepath.Clean(outDir)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		dst := filepath.Join(cleanRoot, filepath.FromSlash(f.Name))
		// защита от zip-slip: все пути обязаны остаться под корнем задачи
		if !strings.HasPrefix(dst, cleanRoot+string(os.PathSeparator)) {
			return fmt.Errorf("model response contains path escaping work dir: %q", f.Name)
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("failed to create artifact dir: %w", err)
		}

		if err := writeArtifact(f, dst); err != nil {
			return err
		}
	}

	return nil
}

func writeArtifact(f *zip.File, dst string) error {
	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open artifact %q in model response: %w", f.Name, err)
	}
	defer closeFileFlow(in)

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create artifact file %q: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write artifact file %q: %w", dst, err)
	}

	return out.Close()
}

func closeFileFlow(res io.Closer) {
	if res == nil {
		return
	}
	_ = res.Close()
}
