package rembg

import (
	"image"

	"github.com/disintegration/imaging"
)

const matteEps = 1e-8

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeMatte 把推理输出拉伸到 [0,1]（原地修改）
// 网络输出层偶尔带数值噪声越出范围；min/max 几乎相等时只 clamp，
// 避免把常数 matte 拉成全 0
func normalizeMatte(m []float32) {
	if len(m) == 0 {
		return
	}
	lo, hi := m[0], m[0]
	for _, v := range m {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	if hi-lo > matteEps {
		scale := 1.0 / (hi - lo + matteEps)
		for i, v := range m {
			m[i] = (v - lo) * scale
		}
		return
	}
	for i, v := range m {
		m[i] = clamp01(v)
	}
}

// smoothMask 对全分辨率 mask 做高斯平滑，柔化放大后的锯齿
// sigma <= 0 时原样返回
func smoothMask(mask *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		return mask
	}

	blurred := imaging.Blur(mask, sigma)
	out := image.NewGray(image.Rect(0, 0, mask.Bounds().Dx(), mask.Bounds().Dy()))
	for y := 0; y < mask.Bounds().Dy(); y++ {
		for x := 0; x < mask.Bounds().Dx(); x++ {
			out.Pix[y*out.Stride+x] = blurred.Pix[y*blurred.Stride+x*4]
		}
	}
	return out
}
