package images

import (
	"image"
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Dims returns the pixel dimensions of an image file without decoding the
// full pixel data.
//
// Arguments:
//   - path: Path to the image file.
//
// Returns:
//   - width, height: The image dimensions in pixels.
//   - error: An error if the file cannot be opened or its header decoded.
func Dims(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "opening image %s", path)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "decoding image header %s", path)
	}
	return cfg.Width, cfg.Height, nil
}

// DecodeTensor reads an image file and converts it into a CHW float32 tensor
// with pixel values scaled to [0, 1]. Only the first 3 channels are kept, so
// RGBA inputs come out as plain RGB.
//
// Arguments:
//   - path: Path to the image file (PNG or JPEG).
//
// Returns:
//   - *tensor.Dense: A (3, height, width) float32 tensor.
//   - error: An error if the file cannot be opened or decoded.
func DecodeTensor(path string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s", path)
	}

	return TensorFromImage(img), nil
}

// TensorFromImage converts a decoded image into a CHW float32 tensor with
// values scaled to [0, 1], alpha channel dropped.
//
// Arguments:
//   - img: The decoded image.
//
// Returns:
//   - *tensor.Dense: A (3, height, width) float32 tensor.
func TensorFromImage(img image.Image) *tensor.Dense {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	channelSize := w * h
	data := make([]float32, 3*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}

	return tensor.New(
		tensor.WithShape(3, h, w),
		tensor.WithBacking(data),
	)
}
