package server

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/bgrm/config"
	"github.com/chaos-io/bgrm/rembg"
	"github.com/chaos-io/bgrm/util"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type Server struct {
	cfg     *config.Config
	remover *rembg.Remover
	logger  *zap.Logger

	engine *gin.Engine
	http   *http.Server
	cron   *cron.Cron
}

func New(cfg *config.Config, remover *rembg.Remover, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:     cfg,
		remover: remover,
		logger:  logger,
		cron:    cron.New(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), Logger(logger))
	r.GET("/healthz", s.handleHealth)
	r.POST("/api/v1/remove", s.handleRemove)
	s.engine = r

	s.http = &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Run 启动定时清理和 HTTP 服务，阻塞直到服务退出
func (s *Server) Run() error {
	if s.cfg.Upload.OutputDir != "" && s.cfg.Upload.CleanupSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.Upload.CleanupSpec, s.purgeExpired); err != nil {
			return err
		}
		s.cron.Start()
	}

	s.logger.Info("listening", zap.String("addr", s.cfg.Server.Port))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRemove 处理抠图请求：multipart 上传 → 管线 → PNG 返回
func (s *Server) handleRemove(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return
	}

	if s.cfg.Upload.MaxSize > 0 && file.Size > s.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "文件大小超过限制",
		})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "读取上传文件失败",
			Error:   err.Error(),
		})
		return
	}
	defer func() {
		_ = f.Close()
	}()

	img, err := util.DecodeImage(f)
	if err != nil {
		s.logger.Warn("decode failed", zap.String("file", file.Filename), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "图片解码失败",
			Error:   err.Error(),
		})
		return
	}

	out, err := s.remover.RemoveBackground(c.Request.Context(), img)
	if err != nil {
		s.logger.Error("remove background failed", zap.String("file", file.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "背景移除失败",
			Error:   err.Error(),
		})
		return
	}

	buf := &bytes.Buffer{}
	if err := util.EncodeImage(buf, out, "png", util.SaveOptions{}); err != nil {
		s.logger.Error("encode failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "结果编码失败",
			Error:   err.Error(),
		})
		return
	}

	// 结果落盘留存，由 cron 定期清理
	if s.cfg.Upload.OutputDir != "" {
		id := ksuid.New().String()
		path := filepath.Join(s.cfg.Upload.OutputDir, id+".png")
		if err := util.SaveImage(path, out, util.SaveOptions{}); err != nil {
			s.logger.Warn("save result failed", zap.String("path", path), zap.Error(err))
		} else {
			c.Header("X-Result-Id", id)
		}
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

