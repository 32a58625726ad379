// Package packager bundles one request's artifacts into a zip.
// Пути внутри архива считаются от идентификатора арендатора, а не от корня
// хранилища: клиент может развернуть архив у себя, не зная наших абсолютных путей.
package packager

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
)

// Pack - собирает архив из артефактов ОДНОГО запроса. Список обязан быть
// проверен на существование прямо перед вызовом: пропавший файл - жесткая ошибка,
// частичный архив не отдаем.
func Pack(tenant string, tenantRoot string, artifacts []model.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, a := range artifacts {
		rel, err := filepath.Rel(tenantRoot, a.Path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("artifact %q is outside tenant tree: %w", a.Path, model.ErrPackagingFailed)
		}

		arcName := filepath.ToSlash(filepath.Join(tenant, rel))
		if err := addFile(zw, a.Path, arcName); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, path string, arcName string) error {
	src, err := os.Open(path)
	if err != nil {
		// файл проверяли на существование перед упаковкой - если он исчез, это не норма
		return fmt.Errorf("artifact %q vanished before packing: %w", path, model.ErrPackagingFailed)
	}
	defer func() { _ = src.Close() }()

	dst, err := zw.Create(arcName)
	if err != nil {
		return fmt.Errorf("failed to add %q to archive: %w", arcName, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write %q to archive: %w", arcName, err)
	}

	return nil
}
