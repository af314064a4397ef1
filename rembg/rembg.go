package rembg

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
)

// Engine 推理能力边界：张量进、matte 出
// 任何后端（本地 onnxruntime、远程服务）都可以替换，管线不感知
//
//go:generate mockgen -destination=mocks/engine.go -package=mocks . Engine
type Engine interface {
	// Infer 输入 (1,3,S,S) CHW 张量，返回 (1,1,S,S) 前景概率
	Infer(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

type Config struct {
	// InputSize 网络要求的正方形输入边长
	InputSize int
	Norm      Normalization
	// SmoothSigma > 0 时对放大后的 mask 做高斯平滑
	SmoothSigma float64
	// Trim 裁掉主体之外的透明边
	Trim          bool
	TrimThreshold float64
	TrimMargin    int
	// Premultiply 输出预乘 alpha，默认 straight alpha
	Premultiply bool
}

func DefaultConfig() Config {
	return Config{
		InputSize:     320,
		Norm:          DefaultNormalization(),
		TrimThreshold: 0.8,
		TrimMargin:    16,
	}
}

// Remover 单图管线编排：letterbox → 推理 → 反向变换 → 合成
// 除了共享的 Engine 句柄外每次调用无状态，buffer 不跨调用复用
type Remover struct {
	cfg    Config
	engine Engine

	mu sync.Mutex // 后端不保证并发安全，推理串行执行
}

func New(engine Engine, cfg Config) (*Remover, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: nil engine", ErrInference)
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d: %w", cfg.InputSize, ErrGeometry)
	}
	return &Remover{cfg: cfg, engine: engine}, nil
}

// RemoveBackground 去除背景，输出透明背景、原始分辨率的 RGBA 图
// 任一阶段失败整体中止，不产出半成品
func (r *Remover) RemoveBackground(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	src := ToNRGBA(img)

	square, g, err := ToSquare(src, r.cfg.InputSize)
	if err != nil {
		return nil, err
	}
	slog.Debug("letterbox forward",
		"scale", g.Scale, "resized_w", g.ResizedW, "resized_h", g.ResizedH,
		"pad_left", g.PadLeft, "pad_top", g.PadTop)

	input := imageToTensor(square, r.cfg.InputSize, r.cfg.Norm)

	r.mu.Lock()
	matte, err := r.engine.Infer(ctx, input)
	r.mu.Unlock()
	if err != nil {
		return nil, wrapInference(fmt.Errorf("run engine: %w", err))
	}
	if len(matte) != r.cfg.InputSize*r.cfg.InputSize {
		return nil, fmt.Errorf("%w: matte length %d, want %d",
			ErrInference, len(matte), r.cfg.InputSize*r.cfg.InputSize)
	}

	normalizeMatte(matte)

	mask, err := ToOriginal(matte, g)
	if err != nil {
		return nil, err
	}
	mask = smoothMask(mask, r.cfg.SmoothSigma)

	out, err := Composite(src, mask)
	if err != nil {
		return nil, err
	}

	if r.cfg.Trim {
		out, err = TrimToForeground(out, r.cfg.TrimThreshold, r.cfg.TrimMargin)
		if err != nil {
			return nil, err
		}
	}
	if r.cfg.Premultiply {
		Premultiply(out)
	}
	return out, nil
}

// Close 释放推理后端，进程退出前调用一次
func (r *Remover) Close() error {
	return r.engine.Close()
}
