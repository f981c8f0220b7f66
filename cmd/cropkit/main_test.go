package main

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/pkg/engine"
)

// writeImage saves a 100x80 PNG with a bright patch and returns its path
func writeImage(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			c := color.NRGBA{30, 30, 30, 255}
			if x > 60 && x < 90 && y > 20 && y < 60 {
				c = color.NRGBA{250, 200, 40, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	p := filepath.Join(dir, "img.png")
	require.NoError(t, imaging.Save(img, p))
	return p
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--config", configPath))
	err := root.Execute()
	return out.String(), err
}

func noConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestCropCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, noConfig(t), "crop", src, "--left", "10", "--top", "10%", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "(90x72)")

	img, err := imaging.Open(filepath.Join(outDir, "img_cropped.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 90, 72), img.Bounds())
}

func TestCropCommandParallel(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, noConfig(t), "crop", filepath.Join(dir, "*.png"), "--bottom", "20", "--jobs", "3", "--out", outDir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], filepath.Join(dir, "a.png")))
	for _, name := range []string{"a", "b", "c", "img"} {
		img, err := imaging.Open(filepath.Join(outDir, name+"_cropped.png"))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 100, 60), img.Bounds())
	}
}

func TestCropCommandNumbersExistingOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)

	_, err := execute(t, noConfig(t), "crop", src, "--right", "50")
	require.NoError(t, err)
	_, err = execute(t, noConfig(t), "crop", src, "--right", "50")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "img_cropped.png"))
	assert.FileExists(t, filepath.Join(dir, "img_cropped-1.png"))
}

func TestCropCommandErrors(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)

	_, err := execute(t, noConfig(t), "crop", src)
	assert.ErrorContains(t, err, "nothing to crop")

	_, err = execute(t, noConfig(t), "crop", src, "--left", "60%", "--right", "50%")
	assert.ErrorContains(t, err, "1 of 1 images failed")

	_, err = execute(t, noConfig(t), "crop", src, "--left", "ten")
	assert.Error(t, err)

	_, err = execute(t, noConfig(t), "crop", filepath.Join(dir, "missing.png"), "--left", "1")
	assert.ErrorContains(t, err, "file not found")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)

	out, err := execute(t, noConfig(t), "convert", src, "--width", "50", "--dpi", "300")
	require.NoError(t, err)
	assert.Contains(t, out, "(50x40, 300 dpi)")

	data, err := os.ReadFile(filepath.Join(dir, "img_converted.png"))
	require.NoError(t, err)
	dpi, ok := engine.DPIOf(data, "png")
	assert.True(t, ok)
	assert.Equal(t, 300, dpi)

	img, err := imaging.Open(filepath.Join(dir, "img_converted.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 40), img.Bounds())
}

func TestConvertCommandDPIOnly(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, noConfig(t), "convert", src, "--dpi", "72", "--suffix=-print", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "(100x80, 72 dpi)")
	assert.FileExists(t, filepath.Join(outDir, "img-print.png"))
}

func TestConvertCommandErrors(t *testing.T) {
	src := writeImage(t, t.TempDir())

	_, err := execute(t, noConfig(t), "convert", src)
	assert.ErrorContains(t, err, "nothing to convert")

	_, err = execute(t, noConfig(t), "convert", src, "--width", "-5")
	assert.ErrorContains(t, err, "must not be negative")

	_, err = execute(t, noConfig(t), "convert", src, "--dpi", "70000")
	assert.ErrorContains(t, err, "1 of 1 images failed")
}

func TestInfoCommand(t *testing.T) {
	src := writeImage(t, t.TempDir())

	out, err := execute(t, noConfig(t), "info", src)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, src, got["source"])
	assert.Equal(t, 100, got["width"])
	assert.Equal(t, 80, got["height"])
	assert.Equal(t, "png", got["format"])
	assert.Equal(t, "5:4", got["ratio"])
	assert.Equal(t, 96, got["dpi"])
	assert.NotEmpty(t, got["size"])
}

func TestConfigCommands(t *testing.T) {
	p := noConfig(t)

	out, err := execute(t, p, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, p)

	_, err = execute(t, p, "config", "init")
	assert.ErrorContains(t, err, "already exists")
	_, err = execute(t, p, "config", "init", "--force")
	assert.NoError(t, err)

	cfg, err := config.LoadFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	out, err = execute(t, p, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "max_width: 1200")
}

func TestInvalidConfigFails(t *testing.T) {
	p := noConfig(t)
	require.NoError(t, os.WriteFile(p, []byte("selection:\n  ratio: sideways\n"), 0644))

	_, err := execute(t, p, "config", "show")
	assert.ErrorContains(t, err, "selection.ratio")
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)
	script := filepath.Join(dir, "session.yaml")
	require.NoError(t, os.WriteFile(script, []byte(`
steps:
  - mouse: down
    at: [10, 10]
  - mouse: move
    at: [60, 50]
  - mouse: up
    at: [60, 50]
  - apply: true
`), 0644))

	out, err := execute(t, noConfig(t), "replay", src, script, "--out", filepath.Join(dir, "out"))
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, filepath.Join(dir, "out", "img_cropped.png"), report["delivered"])

	img, err := imaging.Open(filepath.Join(dir, "out", "img_cropped.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 40), img.Bounds())
}

func TestReplayCommandReportsFailedSteps(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)
	script := filepath.Join(dir, "session.yaml")
	require.NoError(t, os.WriteFile(script, []byte("steps:\n  - apply: true\n"), 0644))

	out, err := execute(t, noConfig(t), "replay", src, script, "--dry-run")
	assert.ErrorContains(t, err, "1 step(s) failed")
	assert.Contains(t, out, "failures:")
}

func TestSuggestCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, noConfig(t), "suggest", src, "--ratio", "1:1", "--overlay", "--apply", "--out", outDir)
	require.NoError(t, err)

	var rep suggestReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "smartcrop", rep.Backend)
	assert.InDelta(t, rep.Crop.Width, rep.Crop.Height, 1)
	assert.Equal(t, 100, rep.Edges.Left+rep.Crop.Width+rep.Edges.Right)
	assert.Equal(t, 80, rep.Edges.Top+rep.Crop.Height+rep.Edges.Bottom)

	assert.Equal(t, filepath.Join(outDir, "img_suggest.png"), rep.Overlay)
	assert.FileExists(t, rep.Overlay)
	cropped, err := imaging.Open(rep.Output)
	require.NoError(t, err)
	assert.Equal(t, rep.Crop.Width, cropped.Bounds().Dx())
}

func TestSuggestCommandUnknownBackend(t *testing.T) {
	src := writeImage(t, t.TempDir())
	_, err := execute(t, noConfig(t), "suggest", src, "--backend", "magic")
	assert.ErrorContains(t, err, "unknown suggest backend")
}

func TestSuggestCommandFacesNeedsCascade(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir)
	_, err := execute(t, noConfig(t), "suggest", src, "--backend", "faces", "--cascade", filepath.Join(dir, "facefinder"))
	assert.ErrorContains(t, err, "failed to read face cascade")
}

func TestSuggestCommandCheckNeedsVisionBackend(t *testing.T) {
	src := writeImage(t, t.TempDir())
	_, err := execute(t, noConfig(t), "suggest", src, "--backend", "smartcrop", "--check")
	assert.ErrorContains(t, err, "cannot be checked")
}

func TestSourceHelpers(t *testing.T) {
	assert.Equal(t, "cat.jpg", sourceName("https://example.com/img/cat.jpg?w=1"))
	assert.Equal(t, "image", sourceName("https://example.com/"))
	assert.Equal(t, "a.png", sourceName("/tmp/x/a.png"))

	assert.Equal(t, "out", outputDir("out", "/tmp/x/a.png"))
	assert.Equal(t, "/tmp/x", outputDir("", "/tmp/x/a.png"))
	assert.Equal(t, ".", outputDir("", "https://example.com/a.png"))
}
