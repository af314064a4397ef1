package onnx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/chaos-io/bgrm/rembg"
)

// Provider 推理执行后端
type Provider string

const (
	ProviderCUDA   Provider = "cuda"
	ProviderCoreML Provider = "coreml"
	ProviderCPU    Provider = "cpu"
)

const (
	DefaultModelURL = "https://github.com/danielgatis/rembg/releases/download/v0.0.0/u2netp.onnx"

	defaultInputName  = "input.1"
	defaultOutputName = "1959"
)

type Config struct {
	// ModelPath u2netp.onnx 的本地路径，缺失时从 ModelURL 下载
	ModelPath string
	ModelURL  string
	// LibraryPath onnxruntime 动态库路径（.so / .dylib / .dll），空则用默认搜索
	LibraryPath string
	// Providers 按优先级排列，前面的不可用时顺延；空则 CUDA → CPU
	Providers  []Provider
	NumThreads int
	InputSize  int
	InputName  string
	OutputName string
}

func DefaultConfig() Config {
	return Config{
		ModelURL:   DefaultModelURL,
		Providers:  []Provider{ProviderCUDA, ProviderCPU},
		NumThreads: 1,
		InputSize:  320,
		InputName:  defaultInputName,
		OutputName: defaultOutputName,
	}
}

// Engine 本地 onnxruntime 推理后端
// session 加载一次后只读复用，输入输出张量预分配，由 Remover 保证串行调用
type Engine struct {
	cfg     Config
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// New 初始化 onnxruntime 环境并按 Providers 顺序创建 session
func New(cfg Config) (*Engine, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 320
	}
	if cfg.InputName == "" {
		cfg.InputName = defaultInputName
	}
	if cfg.OutputName == "" {
		cfg.OutputName = defaultOutputName
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = []Provider{ProviderCUDA, ProviderCPU}
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: initialize onnxruntime: %v", rembg.ErrInference, err)
		}
	}

	modelPath, err := ensureModel(cfg.ModelPath, cfg.ModelURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rembg.ErrInference, err)
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewTensor(
		ort.NewShape(1, 3, size, size),
		make([]float32, 3*cfg.InputSize*cfg.InputSize),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create input tensor: %v", rembg.ErrInference, err)
	}

	output, err := ort.NewTensor(
		ort.NewShape(1, 1, size, size),
		make([]float32, cfg.InputSize*cfg.InputSize),
	)
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("%w: create output tensor: %v", rembg.ErrInference, err)
	}

	session, err := newSession(modelPath, cfg, input, output)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, err
	}

	return &Engine{cfg: cfg, session: session, input: input, output: output}, nil
}

// newSession 依次尝试每个 provider，全部失败才报错
func newSession(modelPath string, cfg Config, input, output *ort.Tensor[float32]) (*ort.AdvancedSession, error) {
	var lastErr error
	for _, p := range cfg.Providers {
		opts, err := sessionOptions(p, cfg.NumThreads)
		if err != nil {
			slog.Warn("execution provider unavailable", "provider", p, "error", err)
			lastErr = err
			continue
		}

		session, err := ort.NewAdvancedSession(
			modelPath,
			[]string{cfg.InputName},
			[]string{cfg.OutputName},
			[]ort.Value{input},
			[]ort.Value{output},
			opts,
		)
		_ = opts.Destroy()
		if err != nil {
			slog.Warn("create session failed", "provider", p, "error", err)
			lastErr = err
			continue
		}

		slog.Info("onnx session ready", "model", modelPath, "provider", p)
		return session, nil
	}
	return nil, fmt.Errorf("%w: no usable execution provider: %v", rembg.ErrInference, lastErr)
}

func sessionOptions(p Provider, numThreads int) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	if numThreads > 0 {
		if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
			_ = opts.Destroy()
			return nil, err
		}
	}

	switch p {
	case ProviderCUDA:
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			_ = opts.Destroy()
			return nil, err
		}
		err = opts.AppendExecutionProviderCUDA(cudaOpts)
		_ = cudaOpts.Destroy()
		if err != nil {
			_ = opts.Destroy()
			return nil, err
		}
	case ProviderCoreML:
		if err := opts.AppendExecutionProviderCoreML(0); err != nil {
			_ = opts.Destroy()
			return nil, err
		}
	case ProviderCPU:
		// 默认就是 CPU
	default:
		_ = opts.Destroy()
		return nil, fmt.Errorf("unknown provider %q", p)
	}
	return opts, nil
}

// Infer 把张量数据拷入预分配输入，跑一次推理，拷出 matte
func (e *Engine) Infer(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := e.input.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("%w: input length %d, want %d", rembg.ErrInference, len(input), len(data))
	}
	copy(data, input)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: run session: %v", rembg.ErrInference, err)
	}

	out := e.output.GetData()
	matte := make([]float32, len(out))
	copy(matte, out)
	return matte, nil
}

// Close 销毁 session 和张量
func (e *Engine) Close() error {
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			return err
		}
		e.session = nil
	}
	if e.input != nil {
		_ = e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	return nil
}

// ensureModel 模型文件不存在时从 URL 下载
func ensureModel(modelPath, modelURL string) (string, error) {
	if modelPath == "" {
		modelPath = filepath.Join("models", "u2netp.onnx")
	}
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	}
	if modelURL == "" {
		return "", fmt.Errorf("model %s not found and no download url", modelPath)
	}

	if err := os.MkdirAll(filepath.Dir(modelPath), 0755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	slog.Info("downloading model", "url", modelURL, "path", modelPath)
	resp, err := http.Get(modelURL)
	if err != nil {
		return "", fmt.Errorf("download model: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download model: bad status %s", resp.Status)
	}

	tmp := modelPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create model file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write model file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmp, modelPath); err != nil {
		return "", fmt.Errorf("move model file: %w", err)
	}
	return modelPath, nil
}
