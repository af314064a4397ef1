package rembg

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposite_PreservesRGBAndSize(t *testing.T) {
	t.Parallel()

	// 随机 RGB 内容 + 随机 mask，输出 RGB 必须逐字节等于输入
	rng := rand.New(rand.NewSource(1))
	src := image.NewNRGBA(image.Rect(0, 0, 61, 43))
	for i := range src.Pix {
		src.Pix[i] = uint8(rng.Intn(256))
	}
	mask := image.NewGray(image.Rect(0, 0, 61, 43))
	for i := range mask.Pix {
		mask.Pix[i] = uint8(rng.Intn(256))
	}

	out, err := Composite(src, mask)
	require.NoError(t, err)

	assert.Equal(t, src.Bounds().Dx(), out.Bounds().Dx())
	assert.Equal(t, src.Bounds().Dy(), out.Bounds().Dy())

	for y := 0; y < 43; y++ {
		for x := 0; x < 61; x++ {
			base := y*out.Stride + x*4
			srcBase := y*src.Stride + x*4
			if out.Pix[base] != src.Pix[srcBase] ||
				out.Pix[base+1] != src.Pix[srcBase+1] ||
				out.Pix[base+2] != src.Pix[srcBase+2] {
				t.Fatalf("RGB changed at (%d,%d)", x, y)
			}
			if out.Pix[base+3] != mask.Pix[y*mask.Stride+x] {
				t.Fatalf("alpha not taken from mask at (%d,%d)", x, y)
			}
		}
	}
}

func TestComposite_DimensionMismatch(t *testing.T) {
	t.Parallel()

	src := newTestImage(10, 10, color.NRGBA{R: 1, A: 255})
	mask := image.NewGray(image.Rect(0, 0, 9, 10))

	_, err := Composite(src, mask)
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestPremultiply(t *testing.T) {
	t.Parallel()

	img := newTestImage(2, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 127})
	Premultiply(img)

	// 200 * 127/255 = 99.6 → 99
	assert.Equal(t, uint8(99), img.Pix[0])
	assert.Equal(t, uint8(49), img.Pix[1])
	assert.Equal(t, uint8(24), img.Pix[2])
	assert.Equal(t, uint8(127), img.Pix[3])
}

func TestTrimToForeground(t *testing.T) {
	t.Parallel()

	// 100x100 透明画布，(40,40)-(60,60) 不透明，margin 5
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}

	out, err := TrimToForeground(img, 0.8, 5)
	require.NoError(t, err)
	assert.Equal(t, 30, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())

	// 全透明图没有主体，必须报 ErrNoForeground 供调用方识别
	empty := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	_, err = TrimToForeground(empty, 0.8, 0)
	assert.ErrorIs(t, err, ErrNoForeground)
}
