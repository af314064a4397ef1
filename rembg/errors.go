package rembg

import (
	"errors"
	"fmt"
)

// 管线错误分类，调用方用 errors.Is 判断
var (
	// ErrDecode 输入图片损坏、格式不支持或尺寸为零
	ErrDecode = errors.New("rembg: decode image")
	// ErrInference 推理引擎加载失败、后端不可用或输出形状不符
	ErrInference = errors.New("rembg: inference")
	// ErrEncode 目标格式无法表示透明通道
	ErrEncode = errors.New("rembg: encode image")
	// ErrGeometry 正反向 letterbox 几何不一致，属于管线 bug 而非坏输入
	ErrGeometry = errors.New("rembg: letterbox geometry mismatch")
	// ErrNoForeground 整张图没有超过阈值的前景像素，裁剪无从谈起
	ErrNoForeground = errors.New("rembg: no foreground region")
)

func wrapInference(err error) error {
	if err == nil || errors.Is(err, ErrInference) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInference, err)
}
