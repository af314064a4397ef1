package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/bgrm/config"
	"github.com/chaos-io/bgrm/rembg"
	"github.com/chaos-io/bgrm/rembg/onnx"
	"github.com/chaos-io/bgrm/rembg/remote"
	"github.com/chaos-io/bgrm/server"
	"github.com/chaos-io/bgrm/util"
)

var (
	output   = flag.String("o", "", "output path (default: <input>_transparent.png)")
	provider = flag.String("provider", "", "execution provider override, e.g. cuda,cpu")
	flatten  = flag.Bool("flatten", false, "flatten onto an opaque background when the output format has no alpha")
	timeout  = flag.Duration("timeout", 2*time.Minute, "overall timeout for a single image")
	serve    = flag.Bool("serve", false, "run the HTTP service instead of one-shot removal")
	cfgPath  = flag.String("config", "config.yaml", "config file path")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input image path or URL>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	// 错误统一从 run 返回再退出，保证推理后端的 Close 在退出前执行
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		cfg = config.Default()
	}
	if *provider != "" {
		cfg.Model.Providers = strings.Split(*provider, ",")
	}

	remover, err := newRemover(cfg)
	if err != nil {
		return fmt.Errorf("load inference engine: %w", err)
	}
	defer func() {
		_ = remover.Close()
	}()

	if *serve {
		return runServer(cfg, remover)
	}

	inputPath := flag.Arg(0)
	if inputPath == "" {
		usage()
		return errors.New("missing input image")
	}

	var img image.Image
	if strings.HasPrefix(inputPath, "http://") || strings.HasPrefix(inputPath, "https://") {
		img, err = util.DownloadImage(inputPath)
	} else {
		img, err = util.OpenImage(inputPath)
	}
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	defer util.Trace("remove background")()
	out, err := remover.RemoveBackground(ctx, img)
	if err != nil {
		return fmt.Errorf("remove background: %w", err)
	}

	outPath := util.OutputPath(inputPath, *output)
	if err := util.SaveImage(outPath, out, util.SaveOptions{Flatten: *flatten}); err != nil {
		return fmt.Errorf("save image: %w", err)
	}

	log.Println("Saved background-free image to", outPath)
	return nil
}

// newRemover 按配置装配推理后端和管线
func newRemover(cfg *config.Config) (*rembg.Remover, error) {
	var (
		engine rembg.Engine
		err    error
	)
	if cfg.Model.RemoteURL != "" {
		engine, err = remote.New(remote.Config{
			BaseURL:   cfg.Model.RemoteURL,
			InputSize: cfg.Model.InputSize,
		})
	} else {
		engine, err = onnx.New(onnx.Config{
			ModelPath:   cfg.Model.Path,
			ModelURL:    cfg.Model.URL,
			LibraryPath: cfg.Model.Library,
			Providers:   toProviders(cfg.Model.Providers),
			NumThreads:  cfg.Model.NumThreads,
			InputSize:   cfg.Model.InputSize,
		})
	}
	if err != nil {
		return nil, err
	}

	rcfg := rembg.DefaultConfig()
	rcfg.InputSize = cfg.Model.InputSize
	rcfg.SmoothSigma = cfg.Model.SmoothSigma
	rcfg.Trim = cfg.Model.Trim
	if cfg.Model.TrimThreshold > 0 {
		rcfg.TrimThreshold = cfg.Model.TrimThreshold
	}
	if cfg.Model.TrimMargin > 0 {
		rcfg.TrimMargin = cfg.Model.TrimMargin
	}
	rcfg.Premultiply = cfg.Model.Premultiply
	if len(cfg.Model.Mean) == 3 && len(cfg.Model.Std) == 3 {
		copy(rcfg.Norm.Mean[:], cfg.Model.Mean)
		copy(rcfg.Norm.Std[:], cfg.Model.Std)
	}
	return rembg.New(engine, rcfg)
}

func toProviders(names []string) []onnx.Provider {
	providers := make([]onnx.Provider, 0, len(names))
	for _, name := range names {
		providers = append(providers, onnx.Provider(strings.TrimSpace(name)))
	}
	return providers
}

func runServer(cfg *config.Config, remover *rembg.Remover) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.Upload.OutputDir != "" {
		if err := os.MkdirAll(cfg.Upload.OutputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	srv := server.New(cfg, remover, logger)
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}
