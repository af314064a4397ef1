package rembg

import (
	"fmt"
	"image"
	"image/draw"
)

// AlphaBBox 从 alpha 通道计算主体 bounding box
// 把 alpha > threshold * 255 的像素当作主体，找所有主体像素的坐标
func AlphaBBox(img *image.NRGBA, threshold float64) (image.Rectangle, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	th := uint8(threshold * 255)

	minX, minY := w, h
	maxX, maxY := 0, 0
	found := false

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			a := img.Pix[row+x*4+3]
			if a > th {
				found = true
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if !found {
		return image.Rectangle{}, fmt.Errorf("%w: 未检测到前景区域", ErrNoForeground)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1), nil
}

// TrimToForeground 裁掉主体 bounding box 之外的透明边，四周保留 margin 像素
func TrimToForeground(img *image.NRGBA, threshold float64, margin int) (*image.NRGBA, error) {
	bbox, err := AlphaBBox(img, threshold)
	if err != nil {
		return nil, err
	}

	rect := image.Rect(
		bbox.Min.X-margin, bbox.Min.Y-margin,
		bbox.Max.X+margin, bbox.Max.Y+margin,
	).Intersect(img.Bounds())

	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, nil
}
