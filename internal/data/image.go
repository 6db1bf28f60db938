package data

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register the JPEG decoder
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/srgan/internal/tensor"
)

// ImageExtensions lists the file types FolderSource reads.
var ImageExtensions = []string{".png", ".jpg", ".jpeg"}

// IsImage reports whether path has one of ImageExtensions.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadImage decodes a PNG or JPEG file into a [3, H, W] tensor in [0, 1].
func LoadImage(path string) (*tensor.RawTensor, error) {
	//nolint:gosec // G304: image paths come from the options file or the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ImageToTensor(img), nil
}

// ImageToTensor converts img to a [3, H, W] RGB tensor in [0, 1].
func ImageToTensor(img image.Image) *tensor.RawTensor {
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	t := tensor.Zeros(tensor.Shape{3, h, w})
	d := t.Data()
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			d[i] = float32(r) / 0xffff
			d[plane+i] = float32(g) / 0xffff
			d[2*plane+i] = float32(b) / 0xffff
		}
	}
	return t
}

// TensorToImage converts a [C, H, W] or [1, C, H, W] tensor in [0, 1] to an
// RGBA image. One-channel tensors become grey.
func TensorToImage(t *tensor.RawTensor) (*image.RGBA, error) {
	shape := t.Shape()
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 || (shape[0] != 1 && shape[0] != 3) {
		return nil, fmt.Errorf("tensor to image: want [C, H, W] with 1 or 3 channels, got %s", t.Shape())
	}
	c, h, w := shape[0], shape[1], shape[2]
	d := t.Data()
	plane := h * w
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			r := clampByte(d[i])
			g, b := r, r
			if c == 3 {
				g, b = clampByte(d[plane+i]), clampByte(d[2*plane+i])
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img, nil
}

// SavePNG writes t as a PNG file, creating its directory.
func SavePNG(path string, t *tensor.RawTensor) error {
	img, err := TensorToImage(t)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	//nolint:gosec // G304: output path comes from the command line
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func clampByte(v float32) uint8 {
	v = v*255 + 0.5
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
