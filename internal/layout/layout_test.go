package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLayout_Resolve_Deterministic(t *testing.T) {
	l := New("/data")
	key := model.WorkKey{Tenant: "u1", Project: "P-1", Floor: "3", ImageID: "1"}

	first := l.Resolve(key)
	second := l.Resolve(key)

	// один ключ - всегда одно и то же дерево, иначе дедупликация не работает
	require.Equal(t, first, second)
	require.Equal(t, filepath.Join("/data", "u1", "P-1", "floor_3", "1"), first.Base)
	require.Equal(t, filepath.Join(first.Base, "original_img"), first.OriginalDir)
	require.Equal(t, filepath.Join(first.Base, "json"), first.JSONDir)
	require.Equal(t, filepath.Join(first.Base, "images"), first.ImagesDir)
	require.Equal(t, filepath.Join(first.Base, "cropped"), first.CroppedDir)
}

func TestLayout_Resolve_DistinctKeys(t *testing.T) {
	l := New("/data")

	a := l.Resolve(model.WorkKey{Tenant: "u1", Project: "P-1", Floor: "3", ImageID: "1"})
	b := l.Resolve(model.WorkKey{Tenant: "u1", Project: "P-1", Floor: "4", ImageID: "1"})

	require.NotEqual(t, a.Base, b.Base)
}

func TestLayout_Candidates(t *testing.T) {
	l := New("/data")
	key := model.WorkKey{Tenant: "u1", Project: "P-1", Floor: "3", ImageID: "1"}

	c := l.Candidates(key, ".png")

	require.Len(t, c, len(model.AllKinds))
	base := filepath.Join("/data", "u1", "P-1", "floor_3", "1")
	require.Equal(t, filepath.Join(base, "json", "detect", "1_detection.json"), c[model.KindDetectionJSON])
	require.Equal(t, filepath.Join(base, "json", "oob", "1_oob.json"), c[model.KindOobJSON])
	require.Equal(t, filepath.Join(base, "json", "segment", "1_segment.json"), c[model.KindSegmentationJSON])
	require.Equal(t, filepath.Join(base, "json", "crop", "1.json"), c[model.KindCroppedJSON])
	require.Equal(t, filepath.Join(base, "images", "1.png"), c[model.KindResultImage])
	require.Equal(t, filepath.Join(base, "original_img", "1.png"), c[model.KindOriginalImage])
	require.Equal(t, filepath.Join(base, "cropped", "1.png"), c[model.KindCroppedImage])
}

func TestEnsureDirs(t *testing.T) {
	l := New(t.TempDir())
	d := l.Resolve(model.WorkKey{Tenant: "u1", Project: "P-1", Floor: "3", ImageID: "1"})

	require.NoError(t, EnsureDirs(d))

	for _, dir := range []string{d.OriginalDir, d.JSONDir, d.ImagesDir, d.CroppedDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestImageID(t *testing.T) {
	tests := []struct {
		in      string
		wantID  string
		wantExt string
	}{
		{"1.png", "1", ".png"},
		{"plan.final.jpg", "plan.final", ".jpg"},
		{"noext", "noext", ""},
		{"dir/2.jpeg", "2", ".jpeg"},
	}

	for _, tt := range tests {
		id, ext := ImageID(tt.in)
		require.Equal(t, tt.wantID, id)
		require.Equal(t, tt.wantExt, ext)
	}
}

func TestSafeKeyPart(t *testing.T) {
	require.True(t, SafeKeyPart("u1"))
	require.True(t, SafeKeyPart("P-1"))
	require.False(t, SafeKeyPart(""))
	require.False(t, SafeKeyPart(".."))
	require.False(t, SafeKeyPart("a/b"))
	require.False(t, SafeKeyPart(`a\b`))
}
