package rembg

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMatte_RescalesRange(t *testing.T) {
	t.Parallel()

	m := []float32{-0.1, 0.2, 0.65, 1.3}
	normalizeMatte(m)

	// 拉伸到 [0,1]，两端顶满
	assert.InDelta(t, 0.0, m[0], 1e-5)
	assert.InDelta(t, 1.0, m[3], 1e-5)
	for _, v := range m {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestNormalizeMatte_UniformStaysUniform(t *testing.T) {
	t.Parallel()

	// 常数 matte 不能被 min/max 拉成 0
	m := []float32{1.0, 1.0, 1.0, 1.0}
	normalizeMatte(m)
	for _, v := range m {
		assert.Equal(t, float32(1.0), v)
	}

	// 越界常数只 clamp
	m = []float32{1.3, 1.3}
	normalizeMatte(m)
	for _, v := range m {
		assert.Equal(t, float32(1.0), v)
	}
}

func TestClamp01(t *testing.T) {
	t.Parallel()

	assert.Equal(t, float32(0), clamp01(-0.1))
	assert.Equal(t, float32(1), clamp01(1.3))
	assert.Equal(t, float32(0.5), clamp01(0.5))
}

func TestSmoothMask(t *testing.T) {
	t.Parallel()

	mask := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}

	// sigma <= 0 原样返回
	assert.Same(t, mask, smoothMask(mask, 0))

	// 常数 mask 平滑后仍是常数
	out := smoothMask(mask, 1.5)
	assert.Equal(t, 20, out.Bounds().Dx())
	for _, v := range out.Pix {
		assert.Equal(t, uint8(255), v)
	}
}
