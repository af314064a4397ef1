package remote

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chaos-io/bgrm/rembg"
	nhttp "github.com/chaos-io/bgrm/util/http"
)

const defaultInferPath = "/api/v1/infer"

type Config struct {
	// BaseURL 推理服务地址，例如 http://192.168.4.188:8188
	BaseURL   string
	InferPath string
	InputSize int
	Timeout   time.Duration
}

// Engine 远程推理后端：把张量 POST 给外部 matting 服务
// 张量数据用 little-endian float32 + base64 编码传输
type Engine struct {
	cfg Config
	cli nhttp.IClient
}

func New(cfg Config) (*Engine, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: empty base url", rembg.ErrInference)
	}
	if cfg.InferPath == "" {
		cfg.InferPath = defaultInferPath
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 320
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	// 客户端级超时设 0：推理耗时由 cfg.Timeout 的请求级 deadline 约束，
	// 不能被更短的客户端硬上限截断
	return &Engine{cfg: cfg, cli: nhttp.NewHTTPClientWithTimeout(0)}, nil
}

type inferRequest struct {
	Shape []int64 `json:"shape"`
	Data  string  `json:"data"`
}

type inferResponse struct {
	Shape []int64 `json:"shape"`
	Data  string  `json:"data"`
}

func (e *Engine) Infer(ctx context.Context, input []float32) ([]float32, error) {
	size := e.cfg.InputSize
	if len(input) != 3*size*size {
		return nil, fmt.Errorf("%w: input length %d, want %d", rembg.ErrInference, len(input), 3*size*size)
	}

	req := &inferRequest{
		Shape: []int64{1, 3, int64(size), int64(size)},
		Data:  encodeFloats(input),
	}
	resp := &inferResponse{}

	reqParam := &nhttp.RequestParam{
		RequestURI: strings.TrimSuffix(e.cfg.BaseURL, "/") + e.cfg.InferPath,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       req,
		Response:   resp,
		Timeout:    e.cfg.Timeout,
	}
	if err := e.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("%w: do request: %v", rembg.ErrInference, err)
	}

	want := int64(size * size)
	var got int64 = 1
	for _, d := range resp.Shape {
		got *= d
	}
	if len(resp.Shape) == 0 || got != want {
		return nil, fmt.Errorf("%w: unexpected output shape %v", rembg.ErrInference, resp.Shape)
	}

	matte, err := decodeFloats(resp.Data, int(want))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rembg.ErrInference, err)
	}
	return matte, nil
}

func (e *Engine) Close() error {
	return nil
}

func encodeFloats(data []float32) string {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeFloats(s string, n int) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode matte data: %w", err)
	}
	if len(buf) != 4*n {
		return nil, fmt.Errorf("matte data length %d, want %d", len(buf), 4*n)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}
