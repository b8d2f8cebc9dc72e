package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mediactl 1.2.3 (abc123)\n", out)
}

func TestProbeCommand(t *testing.T) {
	path := writePNG(t, 640, 480)

	out, err := run(t, "probe", path)
	require.NoError(t, err)
	assert.Contains(t, out, "mime:   image/png")
	assert.Contains(t, out, "image:  640x480 png")
	assert.Contains(t, out, "pixels: 307200")
}

func TestProbeCommandNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	out, err := run(t, "probe", path)
	require.NoError(t, err)
	assert.Contains(t, out, "not readable")
}

func TestEncodeCommand(t *testing.T) {
	in := writePNG(t, 1600, 1200)
	outPath := filepath.Join(t.TempDir(), "thumb.jpg")

	out, err := run(t, "encode", "--preset", "thumbnail", in, outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "output:   800x600")
	assert.Contains(t, out, "preset:   thumbnail (scale-to-width)")

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.LessOrEqual(t, info.Size(), int64(200*1024))
}

func TestEncodeCommandAvatarCropsSquare(t *testing.T) {
	in := writePNG(t, 1200, 900)
	outPath := filepath.Join(t.TempDir(), "avatar.jpg")

	out, err := run(t, "encode", "--preset", "avatar", in, outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "output:   400x400")
}

func TestEncodeCommandUnknownPreset(t *testing.T) {
	in := writePNG(t, 10, 10)

	_, err := run(t, "encode", "--preset", "poster", in, filepath.Join(t.TempDir(), "x.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preset")
}

func TestImportAndProcessWithSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tribute.db")
	root := filepath.Join(dir, "storage")
	img := writePNG(t, 2400, 1800)

	out, err := run(t, "import", "--sqlite", dbPath, "--storage-root", root, "--public", "--process", img)
	require.NoError(t, err)
	assert.Contains(t, out, "image/png")
	assert.Contains(t, out, ": ready")
	assert.Contains(t, out, "800x600")
	assert.Contains(t, out, "1920x1440")

	id := strings.Fields(out)[0]
	derived, err := filepath.Glob(filepath.Join(root, "public", "derivatives", id, "*"))
	require.NoError(t, err)
	assert.Len(t, derived, 2)

	out, err = run(t, "list", "--sqlite", dbPath, "--storage-root", root)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "ready")
}

func TestReprocessWithSQLiteRunsInline(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tribute.db")
	root := filepath.Join(dir, "storage")

	out, err := run(t, "import", "--sqlite", dbPath, "--storage-root", root, writePNG(t, 300, 200))
	require.NoError(t, err)
	id := strings.Fields(out)[0]

	out, err = run(t, "reprocess", "--sqlite", dbPath, "--storage-root", root, id)
	require.NoError(t, err)
	assert.Equal(t, id+" ready\n", out)

	derived, err := filepath.Glob(filepath.Join(root, "local", "derivatives", id, "*"))
	require.NoError(t, err)
	assert.Len(t, derived, 2)
}

func TestProcessRejectsInvalidID(t *testing.T) {
	_, err := run(t, "process", "--sqlite", filepath.Join(t.TempDir(), "db"), "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid media id")
}

func TestMigrateRefusesSQLite(t *testing.T) {
	_, err := run(t, "migrate", "--sqlite", filepath.Join(t.TempDir(), "db"))
	require.Error(t, err)
}

// --- helpers & fakes ---

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(VersionInfo{Version: "1.2.3", Commit: "abc123"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}
