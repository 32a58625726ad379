// Package layout maps a work-item key to its on-disk directory tree.
// The mapping is a pure function of the key - no timestamps, no counters.
// Two uploads of the same key MUST land in the same folder, otherwise
// the processing ledger check is meaningless.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
)

type Layout struct {
	root string
}

// Dirs - набор директорий одной задачи под корнем хранилища
type Dirs struct {
	Base        string // <root>/<tenant>/<project>/floor_<floor>/<image-base>
	OriginalDir string // .../original_img
	JSONDir     string // .../json
	ImagesDir   string // .../images
	CroppedDir  string // .../cropped
}

func New(root string) Layout {
	return Layout{root: root}
}

func (l Layout) Root() string {
	return l.root
}

// TenantRoot - корень дерева одного арендатора, от него считаются пути внутри архива
func (l Layout) TenantRoot(tenant string) string {
	return filepath.Join(l.root, tenant)
}

// Resolve - считает все директории задачи. Детерминированно, без побочных эффектов.
func (l Layout) Resolve(key model.WorkKey) Dirs {
	base := filepath.Join(l.root, key.Tenant, key.Project, "floor_"+key.Floor, key.ImageID)
	return Dirs{
		Base:        base,
		OriginalDir: filepath.Join(base, "original_img"),
		JSONDir:     filepath.Join(base, "json"),
		ImagesDir:   filepath.Join(base, "images"),
		CroppedDir:  filepath.Join(base, "cropped"),
	}
}

// Candidates - полный список путей, по которым модель могла оставить артефакты.
// Файла может и не быть - это решает уже оркестратор через os.Stat.
func (l Layout) Candidates(key model.WorkKey, ext string) map[model.ArtifactKind]string {
	d := l.Resolve(key)
	base := key.ImageID

	return map[model.ArtifactKind]string{
		model.KindDetectionJSON:    filepath.Join(d.JSONDir, "detect", base+"_detection.json"),
		model.KindOobJSON:          filepath.Join(d.JSONDir, "oob", base+"_oob.json"),
		model.KindSegmentationJSON: filepath.Join(d.JSONDir, "segment", base+"_segment.json"),
		model.KindCroppedJSON:      filepath.Join(d.JSONDir, "crop", base+".json"),
		model.KindResultImage:      filepath.Join(d.ImagesDir, base+ext),
		model.KindOriginalImage:    filepath.Join(d.OriginalDir, base+ext),
		model.KindCroppedImage:     filepath.Join(d.CroppedDir, base+".png"),
	}
}

// EnsureDirs - создает директории задачи перед сохранением исходника и запуском модели
func EnsureDirs(d Dirs) error {
	for _, dir := range []string{d.OriginalDir, d.JSONDir, d.ImagesDir, d.CroppedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create dir %q: %w", dir, err)
		}
	}
	return nil
}

// ImageID - базовое имя файла без расширения, оно же последний компонент ключа задачи
func ImageID(filename string) (id string, ext string) {
	name := filepath.Base(filename)
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// SafeKeyPart reports whether a client-supplied key component is usable as a path element.
// Защита от побега из дерева арендатора через "../" и пустые значения.
func SafeKeyPart(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." {
		return false
	}
	return true
}
