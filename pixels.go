package lookdev

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
	FormatTIFF ImageFormat = "tiff"
)

// Ext returns the file extension without the dot.
func (f ImageFormat) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

func (f ImageFormat) valid() bool {
	switch f {
	case FormatPNG, FormatJPEG, FormatTIFF:
		return true
	}
	return false
}

// PixelBuffer holds bake output as interleaved RGBA float32, row-major
// from the top-left corner.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []float32
}

func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*4),
	}
}

func (p *PixelBuffer) At(x, y int) [4]float32 {
	i := (y*p.Width + x) * 4
	return [4]float32{p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3]}
}

func (p *PixelBuffer) Set(x, y int, c [4]float32) {
	i := (y*p.Width + x) * 4
	p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3] = c[0], c[1], c[2], c[3]
}

func (p *PixelBuffer) Clone() *PixelBuffer {
	out := &PixelBuffer{Width: p.Width, Height: p.Height, Pix: make([]float32, len(p.Pix))}
	copy(out.Pix, p.Pix)
	return out
}

func (p *PixelBuffer) check() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("pixel buffer: invalid size %dx%d", p.Width, p.Height)
	}
	if len(p.Pix) != p.Width*p.Height*4 {
		return fmt.Errorf("pixel buffer: %dx%d needs %d floats, have %d",
			p.Width, p.Height, p.Width*p.Height*4, len(p.Pix))
	}
	return nil
}

// MeanLuminance averages Rec. 709 luma over the buffer. The orchestrator
// uses it to flag suspiciously dark metalness bakes.
func (p *PixelBuffer) MeanLuminance() float64 {
	if p.Width == 0 || p.Height == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+2 < len(p.Pix); i += 4 {
		sum += 0.2126*float64(p.Pix[i]) + 0.7152*float64(p.Pix[i+1]) + 0.0722*float64(p.Pix[i+2])
	}
	return sum / float64(p.Width*p.Height)
}

// renormalizeNormals rescales every texel of a normal bake back to unit
// length. Filtering during downsampling shortens interpolated normals.
func renormalizeNormals(p *PixelBuffer) {
	for i := 0; i+3 < len(p.Pix); i += 4 {
		v := mgl32.Vec3{
			p.Pix[i]*2 - 1,
			p.Pix[i+1]*2 - 1,
			p.Pix[i+2]*2 - 1,
		}
		if v.Len() < 1e-6 {
			continue
		}
		v = v.Normalize()
		p.Pix[i] = v.X()*0.5 + 0.5
		p.Pix[i+1] = v.Y()*0.5 + 0.5
		p.Pix[i+2] = v.Z()*0.5 + 0.5
	}
}

// downsample scales the buffer down by an integer factor with a
// Catmull-Rom kernel. Values are clamped to [0, 1] on the way through the
// 16 bit intermediate.
func downsample(p *PixelBuffer, factor int) (*PixelBuffer, error) {
	if factor <= 1 {
		return p, nil
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	if p.Width%factor != 0 || p.Height%factor != 0 {
		return nil, fmt.Errorf("downsample: %dx%d not divisible by %d", p.Width, p.Height, factor)
	}
	src := p.toNRGBA64()
	dst := image.NewNRGBA64(image.Rect(0, 0, p.Width/factor, p.Height/factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return fromNRGBA64(dst), nil
}

func quant8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.RoundToEven(float64(v) * 255))
}

func quant16(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 65535
	}
	return uint16(math.RoundToEven(float64(v) * 65535))
}

func (p *PixelBuffer) toNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for i, j := 0, 0; i < len(p.Pix); i, j = i+4, j+4 {
		img.Pix[j] = quant8(p.Pix[i])
		img.Pix[j+1] = quant8(p.Pix[i+1])
		img.Pix[j+2] = quant8(p.Pix[i+2])
		img.Pix[j+3] = quant8(p.Pix[i+3])
	}
	return img
}

func (p *PixelBuffer) toNRGBA64() *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, p.Width, p.Height))
	for i, j := 0, 0; i < len(p.Pix); i, j = i+4, j+8 {
		putUint16(img.Pix[j:], quant16(p.Pix[i]))
		putUint16(img.Pix[j+2:], quant16(p.Pix[i+1]))
		putUint16(img.Pix[j+4:], quant16(p.Pix[i+2]))
		putUint16(img.Pix[j+6:], quant16(p.Pix[i+3]))
	}
	return img
}

func putUint16(b []byte, v uint16) {
	b[0] = uint8(v >> 8)
	b[1] = uint8(v)
}

func fromNRGBA64(img *image.NRGBA64) *PixelBuffer {
	b := img.Bounds()
	out := NewPixelBuffer(b.Dx(), b.Dy())
	for i, j := 0, 0; i < len(out.Pix); i, j = i+4, j+8 {
		out.Pix[i] = float32(uint16(img.Pix[j])<<8|uint16(img.Pix[j+1])) / 65535
		out.Pix[i+1] = float32(uint16(img.Pix[j+2])<<8|uint16(img.Pix[j+3])) / 65535
		out.Pix[i+2] = float32(uint16(img.Pix[j+4])<<8|uint16(img.Pix[j+5])) / 65535
		out.Pix[i+3] = float32(uint16(img.Pix[j+6])<<8|uint16(img.Pix[j+7])) / 65535
	}
	return out
}

// EncodeTexture serializes a pixel buffer into the requested container.
// PNG and JPEG quantize to 8 bit, TIFF keeps 16 bit with deflate
// compression. Encoding is deterministic: the same buffer always yields
// the same bytes.
func EncodeTexture(p *PixelBuffer, format ImageFormat, jpegQuality int) ([]byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := png.Encode(&buf, p.toNRGBA()); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case FormatJPEG:
		if err := jpeg.Encode(&buf, p.toNRGBA(), &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatTIFF:
		opt := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
		if err := tiff.Encode(&buf, p.toNRGBA64(), opt); err != nil {
			return nil, fmt.Errorf("encode tiff: %w", err)
		}
	default:
		return nil, fmt.Errorf("encode: unknown image format %q", format)
	}
	return buf.Bytes(), nil
}
