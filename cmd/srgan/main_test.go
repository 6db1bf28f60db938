package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/internal/data"
	"github.com/born-ml/srgan/internal/serialization"
	"github.com/born-ml/srgan/internal/tensor"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "srgan "+version+"\n", out)
}

func TestBadLogFormat(t *testing.T) {
	_, err := execute(t, "--log-format", "xml", "version")
	assert.Error(t, err)
}

func writeNetwork(t *testing.T, path, kind string) {
	t.Helper()
	w, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)
	require.NoError(t, serialization.WriteFile(path, map[string]*tensor.RawTensor{"model.0.weight": w},
		serialization.WriteOptions{Kind: kind, ModelType: "SRResNet", Metadata: map[string]string{"iter": "5"}}))
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "5_G.pth")
	writeNetwork(t, in, serialization.KindNetwork)

	out := filepath.Join(dir, "G.safetensors")
	stdout, err := execute(t, "export", in, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "exported 1 tensors")

	f, err := serialization.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "SRResNet", f.Header.Metadata["model_type"])
	assert.Equal(t, "5", f.Header.Metadata["iter"])
	assert.Equal(t, []float32{1, 2, 3, 4}, f.Tensors["model.0.weight"].Data())
}

func TestExportRejectsTrainingState(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "5.state")
	writeNetwork(t, in, serialization.KindTrainingState)
	_, err := execute(t, "export", in, filepath.Join(dir, "x.safetensors"))
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "5_G.pth")
	writeNetwork(t, path, serialization.KindNetwork)

	out, err := execute(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "kind: network\n")
	assert.Contains(t, out, "model_type: SRResNet\n")
	assert.Contains(t, out, "iter: 5\n")
	assert.Contains(t, out, "model.0.weight [2 2]")
}

func TestTrainRequiresOpt(t *testing.T) {
	_, err := execute(t, "train")
	assert.Error(t, err)
}

const testYaml = `
name: upscale
is_train: false
scale: 4
network_G:
  which_model_G: sr_resnet
  nf: 4
  nb: 1
  in_nc: 3
  out_nc: 3
path:
  root: %s
`

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	optPath := filepath.Join(dir, "test.yml")
	require.NoError(t, os.WriteFile(optPath, []byte(fmt.Sprintf(testYaml, dir)), 0o600))

	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 128, A: 255})
		}
	}
	in := filepath.Join(dir, "lr.png")
	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "out", "sr.png")
	_, err = execute(t, "test", "--opt", optPath, "--input", in, "--output", out)
	require.NoError(t, err)

	sr, err := data.LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 24, 32}, sr.Shape())
}
