package util

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/chaos-io/bgrm/rembg"
)

// DecodeImage 解码图片，损坏、格式不支持或尺寸为零都报 ErrDecode
func DecodeImage(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rembg.ErrDecode, err)
	}
	if img.Bounds().Dx() <= 0 || img.Bounds().Dy() <= 0 {
		return nil, fmt.Errorf("%w: zero-dimension %s image", rembg.ErrDecode, format)
	}
	return img, nil
}

// OpenImage 打开本地图片
func OpenImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", rembg.ErrDecode, path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	return DecodeImage(file)
}

// DownloadImage 下载图片
func DownloadImage(url string) (image.Image, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", rembg.ErrDecode, url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download %s: status %s", rembg.ErrDecode, url, resp.Status)
	}

	imgData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", rembg.ErrDecode, url, err)
	}

	return DecodeImage(bytes.NewReader(imgData))
}

type SaveOptions struct {
	// Flatten 目标格式不支持透明时，把图片压在不透明底色上而不是报错
	Flatten    bool
	Background color.Color
}

// EncodeImage 按格式编码；png/tiff 无损保留 alpha，
// jpeg 不支持透明，未要求 Flatten 时报 ErrEncode
func EncodeImage(w io.Writer, img image.Image, format string, opts SaveOptions) error {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png":
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("%w: png: %v", rembg.ErrEncode, err)
		}
	case "tif", "tiff":
		if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return fmt.Errorf("%w: tiff: %v", rembg.ErrEncode, err)
		}
	case "jpg", "jpeg":
		if !opts.Flatten {
			return fmt.Errorf("%w: jpeg cannot represent alpha, set Flatten to force", rembg.ErrEncode)
		}
		if err := jpeg.Encode(w, Flatten(img, opts.Background), &jpeg.Options{Quality: 95}); err != nil {
			return fmt.Errorf("%w: jpeg: %v", rembg.ErrEncode, err)
		}
	default:
		return fmt.Errorf("%w: unsupported format %q", rembg.ErrEncode, format)
	}
	return nil
}

// SaveImage 按扩展名编码写盘，编码失败不留半成品文件
func SaveImage(path string, img image.Image, opts SaveOptions) error {
	buf := &bytes.Buffer{}
	if err := EncodeImage(buf, img, filepath.Ext(path), opts); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", rembg.ErrEncode, path, err)
	}
	return nil
}

// Flatten 把带透明的图片压到不透明底色上（默认白色）
func Flatten(img image.Image, bg color.Color) *image.NRGBA {
	if bg == nil {
		bg = color.White
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// OutputPath 默认输出命名：原文件名加 _transparent 后缀并强制 .png
func OutputPath(inputPath, explicit string) string {
	if explicit != "" {
		return explicit
	}
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(inputPath), stem+"_transparent.png")
}
