package rembg

import (
	"fmt"
	"image"
	"image/draw"
)

// Composite 把原图 RGB 和全分辨率 mask 合成 straight alpha 输出
// RGB 通道逐字节保留原图，alpha 通道来自 mask，不做阈值化，
// 保留头发等软边缘；输出尺寸严格等于输入尺寸
func Composite(src *image.NRGBA, mask *image.Gray) (*image.NRGBA, error) {
	src = ToNRGBA(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if mask.Bounds().Dx() != w || mask.Bounds().Dy() != h {
		return nil, fmt.Errorf("mask %dx%d vs image %dx%d: %w",
			mask.Bounds().Dx(), mask.Bounds().Dy(), w, h, ErrGeometry)
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		outRow := out.Pix[y*out.Stride : y*out.Stride+w*4]
		maskRow := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := 0; x < w; x++ {
			base := x * 4
			outRow[base+0] = srcRow[base+0]
			outRow[base+1] = srcRow[base+1]
			outRow[base+2] = srcRow[base+2]
			outRow[base+3] = maskRow[x]
		}
	}
	return out, nil
}

// Premultiply 预乘 Alpha，RGB × alpha
// 默认输出是 straight alpha，只有调用方显式要求时才预乘
func Premultiply(img *image.NRGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		a := float64(img.Pix[i+3]) / 255.0
		img.Pix[i] = uint8(float64(img.Pix[i]) * a)
		img.Pix[i+1] = uint8(float64(img.Pix[i+1]) * a)
		img.Pix[i+2] = uint8(float64(img.Pix[i+2]) * a)
	}
}

// ToNRGBA 转为 NRGBA，方便统一处理
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
