package backend

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
	"github.com/charmbracelet/log"
)

// Session 延迟初始化的模型会话
type Session struct {
	backend Backend
	device  string
	logger  *log.Logger

	// 关闭窗口时 handle 可能在工作协程读取期间被释放
	mu     sync.Mutex
	handle Handle
}

// NewSession 创建会话，device 例如 "cuda"
func NewSession(b Backend, device string, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		backend: b,
		device:  device,
		logger:  logger.WithPrefix("session"),
	}
}

// Ready 模型是否已加载
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

func (s *Session) current() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Initialize 加载模型；已加载时直接返回
func (s *Session) Initialize(ctx context.Context) error {
	if s.Ready() {
		return nil
	}
	if s.backend == nil {
		return fmt.Errorf("初始化模型失败: 未配置后端")
	}

	h, err := s.backend.Initialize(ctx, s.device, TaskText2Img)
	if err != nil {
		s.logger.Error("模型初始化失败", "device", s.device, "err", err)
		return fmt.Errorf("初始化模型失败: %w", err)
	}
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
	s.logger.Info("模型已初始化", "device", s.device, "task", TaskText2Img)
	return nil
}

// Generate 用请求中已确定的种子调用后端，批大小固定为 1。
// 后端的错误和 panic 都转换为 *GenerationError。
func (s *Session) Generate(ctx context.Context, req params.Request) (images []image.Image, err error) {
	h := s.current()
	if h == nil {
		return nil, ErrModelNotReady
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("后端发生 panic", "panic", r)
			images = nil
			err = &GenerationError{Kind: KindBackend, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	args := ArgsFromRequest(req)
	images, err = h.Generate(ctx, args)
	if err != nil {
		s.logger.Error("生成失败", "seed", args.Seed, "err", err)
		return nil, &GenerationError{Kind: KindBackend, Err: err}
	}
	images = dropNil(images)
	if len(images) == 0 {
		s.logger.Warn("后端没有返回图片", "seed", args.Seed)
		return nil, &GenerationError{Kind: KindEmptyResult}
	}

	s.logger.Debug("生成完成", "seed", args.Seed, "count", len(images))
	return images, nil
}

// dropNil 去掉后端返回的空图片
func dropNil(images []image.Image) []image.Image {
	out := images[:0:0]
	for _, img := range images {
		if img != nil {
			out = append(out, img)
		}
	}
	return out
}

// Close 释放模型句柄
func (s *Session) Close() error {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Close()
}

// ArgsFromRequest 把请求转换为后端参数
func ArgsFromRequest(req params.Request) Text2ImgArgs {
	return Text2ImgArgs{
		Prompt:                req.Prompt,
		NumSteps:              req.NumSteps,
		BatchSize:             BatchSize,
		GuidanceScale:         req.GuidanceScale,
		H:                     req.Height,
		W:                     req.Width,
		Sampler:               string(req.Sampler),
		PriorCFScale:          req.PriorCFScale,
		PriorSteps:            req.PriorStepsString(),
		NegativePriorPrompt:   req.NegativePriorPrompt,
		NegativeDecoderPrompt: req.NegativeDecoderPrompt,
		Seed:                  req.Seed,
	}
}
