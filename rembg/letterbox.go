package rembg

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Geometry 记录正向 letterbox 的缩放和填充参数
// 反向变换必须复用同一个 Geometry 里的整数尺寸，绝不能用 Scale 重新推算，
// 否则浮点舍入会造成边缘错位
type Geometry struct {
	Scale    float64
	PadLeft  int
	PadTop   int
	ResizedW int
	ResizedH int
	SrcW     int
	SrcH     int
	Size     int
}

func (g Geometry) validate() error {
	if g.Size <= 0 || g.SrcW <= 0 || g.SrcH <= 0 || g.ResizedW <= 0 || g.ResizedH <= 0 {
		return fmt.Errorf("non-positive dimensions %+v: %w", g, ErrGeometry)
	}
	if g.PadLeft < 0 || g.PadTop < 0 ||
		g.PadLeft+g.ResizedW > g.Size || g.PadTop+g.ResizedH > g.Size {
		return fmt.Errorf("content region outside %dx%d canvas %+v: %w", g.Size, g.Size, g, ErrGeometry)
	}
	return nil
}

// ToSquare 把任意分辨率图片等比缩放后居中放进 size x size 画布
// 长边贴满画布，短边两侧用黑色（0）填充，填充区域不会被后续阶段当成前景
func ToSquare(img image.Image, size int) (*image.NRGBA, Geometry, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || size <= 0 {
		return nil, Geometry{}, fmt.Errorf("invalid input %dx%d for size %d: %w", w, h, size, ErrGeometry)
	}

	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	rw := min(max(int(math.Round(float64(w)*scale)), 1), size)
	rh := min(max(int(math.Round(float64(h)*scale)), 1), size)

	g := Geometry{
		Scale:    scale,
		PadLeft:  (size - rw) / 2,
		PadTop:   (size - rh) / 2,
		ResizedW: rw,
		ResizedH: rh,
		SrcW:     w,
		SrcH:     h,
		Size:     size,
	}

	// CatmullRom 抗锯齿缩放，填充区保持零值
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	region := image.Rect(g.PadLeft, g.PadTop, g.PadLeft+rw, g.PadTop+rh)
	draw.CatmullRom.Scale(canvas, region, img, b, draw.Src, nil)

	return canvas, g, nil
}

// ToOriginal 反向变换：裁掉填充区域，再放大回原始分辨率
// 裁剪必须精确使用正向变换记录的整数区域
func ToOriginal(matte []float32, g Geometry) (*image.Gray, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if len(matte) != g.Size*g.Size {
		return nil, fmt.Errorf("matte length %d, want %d: %w", len(matte), g.Size*g.Size, ErrGeometry)
	}

	// 裁剪 (PadLeft, PadTop, ResizedW, ResizedH) 区域，顺手 clamp 到 [0,1]
	cropped := image.NewGray(image.Rect(0, 0, g.ResizedW, g.ResizedH))
	for y := 0; y < g.ResizedH; y++ {
		row := (g.PadTop + y) * g.Size
		for x := 0; x < g.ResizedW; x++ {
			v := clamp01(matte[row+g.PadLeft+x])
			cropped.Pix[y*cropped.Stride+x] = uint8(v*255 + 0.5)
		}
	}

	if g.ResizedW == g.SrcW && g.ResizedH == g.SrcH {
		return cropped, nil
	}

	resized := resize.Resize(uint(g.SrcW), uint(g.SrcH), cropped, resize.Lanczos3)
	mask, ok := resized.(*image.Gray)
	if !ok {
		gray := image.NewGray(resized.Bounds())
		draw.Draw(gray, gray.Bounds(), resized, resized.Bounds().Min, draw.Src)
		mask = gray
	}
	return mask, nil
}
