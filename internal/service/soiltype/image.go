package soiltype

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// InputSize is the square edge the classifier was trained on.
const InputSize = 224

// Tensor is one image as [height][width][rgb], each channel in [0, 1].
type Tensor [][][3]float32

// DecodeError reports bytes that could not be turned into an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Sniff checks that data holds a supported image without decoding pixels and
// returns its MIME type.
func Sniff(data []byte) (string, error) {
	if len(data) == 0 {
		return "", &DecodeError{Err: fmt.Errorf("empty image")}
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", &DecodeError{Err: fmt.Errorf("decode image: %w", err)}
	}
	return "image/" + format, nil
}

// Decode turns raw image bytes into an InputSize x InputSize RGB tensor.
// Alpha is dropped without compositing.
func Decode(data []byte) (Tensor, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("empty image")}
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("decode image: %w", err)}
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, &DecodeError{Err: fmt.Errorf("image has no pixels")}
	}

	// NRGBA keeps straight colour values; scaling a premultiplied image would
	// darken translucent pixels.
	straight := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(straight, straight.Bounds(), src, b.Min, draw.Src)

	dst := image.NewNRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), straight, straight.Bounds(), draw.Src, nil)

	t := make(Tensor, InputSize)
	for y := 0; y < InputSize; y++ {
		row := make([][3]float32, InputSize)
		off := y * dst.Stride
		for x := 0; x < InputSize; x++ {
			p := dst.Pix[off+x*4 : off+x*4+3]
			row[x] = [3]float32{
				float32(p[0]) / 255,
				float32(p[1]) / 255,
				float32(p[2]) / 255,
			}
		}
		t[y] = row
	}
	return t, nil
}
