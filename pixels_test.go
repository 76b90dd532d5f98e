package lookdev

import (
	"bytes"
	"image/png"
	"math"
	"testing"
)

func fillBuffer(p *PixelBuffer, c [4]float32) {
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			p.Set(x, y, c)
		}
	}
}

func TestMeanLuminance(t *testing.T) {
	p := NewPixelBuffer(4, 4)
	fillBuffer(p, [4]float32{0.5, 0.5, 0.5, 1})
	if got := p.MeanLuminance(); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("Expected mean luminance 0.5, got %f", got)
	}

	black := NewPixelBuffer(2, 2)
	if got := black.MeanLuminance(); got != 0 {
		t.Errorf("Expected 0 for black buffer, got %f", got)
	}
}

func TestRenormalizeNormals(t *testing.T) {
	p := NewPixelBuffer(2, 1)
	// A shortened +Z normal, as filtering produces.
	p.Set(0, 0, [4]float32{0.5, 0.5, 0.75, 1})
	// Flat tangent normal stays put.
	p.Set(1, 0, [4]float32{0.5, 0.5, 1, 1})

	renormalizeNormals(p)

	c := p.At(0, 0)
	x := float64(c[0])*2 - 1
	y := float64(c[1])*2 - 1
	z := float64(c[2])*2 - 1
	length := math.Sqrt(x*x + y*y + z*z)
	if math.Abs(length-1) > 1e-5 {
		t.Errorf("Expected unit length after renormalization, got %f", length)
	}
	flat := p.At(1, 0)
	if math.Abs(float64(flat[2])-1) > 1e-5 {
		t.Errorf("Unit +Z normal must survive unchanged, got %v", flat)
	}
}

func TestDownsample(t *testing.T) {
	p := NewPixelBuffer(8, 8)
	fillBuffer(p, [4]float32{0.25, 0.5, 0.75, 1})

	out, err := downsample(p, 2)
	if err != nil {
		t.Fatalf("downsample: %v", err)
	}
	if out.Width != 4 || out.Height != 4 {
		t.Fatalf("Expected 4x4, got %dx%d", out.Width, out.Height)
	}
	// A constant image stays constant through any filter.
	c := out.At(2, 2)
	if math.Abs(float64(c[0])-0.25) > 0.005 || math.Abs(float64(c[1])-0.5) > 0.005 {
		t.Errorf("Constant image changed under downsampling: %v", c)
	}
}

func TestDownsampleFactorOneIsIdentity(t *testing.T) {
	p := NewPixelBuffer(4, 4)
	out, err := downsample(p, 1)
	if err != nil {
		t.Fatalf("downsample: %v", err)
	}
	if out != p {
		t.Error("Factor 1 must return the buffer unchanged")
	}
}

func TestDownsampleRejectsIndivisibleSizes(t *testing.T) {
	p := NewPixelBuffer(5, 4)
	if _, err := downsample(p, 2); err == nil {
		t.Error("Expected an error for a size not divisible by the factor")
	}
}

func TestEncodeTextureDeterministic(t *testing.T) {
	p := NewPixelBuffer(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			p.Set(x, y, [4]float32{float32(x) / 4, float32(y) / 4, 0.5, 1})
		}
	}
	for _, format := range []ImageFormat{FormatPNG, FormatJPEG, FormatTIFF} {
		a, err := EncodeTexture(p, format, 90)
		if err != nil {
			t.Fatalf("encode %s: %v", format, err)
		}
		b, err := EncodeTexture(p.Clone(), format, 90)
		if err != nil {
			t.Fatalf("encode %s: %v", format, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("Encoding %s is not deterministic", format)
		}
	}
}

func TestEncodeTexturePNGRoundTrip(t *testing.T) {
	p := NewPixelBuffer(2, 2)
	p.Set(0, 0, [4]float32{1, 0, 0, 1})
	p.Set(1, 0, [4]float32{0, 1, 0, 1})
	p.Set(0, 1, [4]float32{0, 0, 1, 1})
	p.Set(1, 1, [4]float32{1, 1, 1, 0.5})

	data, err := EncodeTexture(p, FormatPNG, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("Expected 2x2 png, got %v", b)
	}
	r, g, _, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 || g>>8 != 0 {
		t.Errorf("Expected pure red at (0,0), got r=%d g=%d", r>>8, g>>8)
	}
}

func TestEncodeTextureUnknownFormat(t *testing.T) {
	p := NewPixelBuffer(1, 1)
	if _, err := EncodeTexture(p, ImageFormat("bmp"), 0); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestEncodeTextureBadBuffer(t *testing.T) {
	p := &PixelBuffer{Width: 2, Height: 2, Pix: make([]float32, 3)}
	if _, err := EncodeTexture(p, FormatPNG, 0); err == nil {
		t.Error("Expected an error for a malformed buffer")
	}
}

func TestQuantization(t *testing.T) {
	cases := []struct {
		in   float32
		out8 uint8
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 128},
		{1, 255},
		{1.5, 255},
	}
	for _, c := range cases {
		if got := quant8(c.in); got != c.out8 {
			t.Errorf("quant8(%f) = %d, expected %d", c.in, got, c.out8)
		}
	}
	if got := quant16(0.5); got != 32768 {
		t.Errorf("quant16(0.5) = %d, expected 32768", got)
	}
	if got := quant16(2); got != 65535 {
		t.Errorf("quant16(2) = %d, expected 65535", got)
	}
}

func TestImageFormatExt(t *testing.T) {
	if FormatPNG.Ext() != "png" || FormatJPEG.Ext() != "jpg" || FormatTIFF.Ext() != "tiff" {
		t.Errorf("Unexpected extensions: %s %s %s", FormatPNG.Ext(), FormatJPEG.Ext(), FormatTIFF.Ext())
	}
}
