package studio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/Zacy-Sokach/PolyCanvas/internal/gallery"
	"github.com/Zacy-Sokach/PolyCanvas/internal/history"
	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// MaxBatch 每次生成最多保留的图片数
const MaxBatch = 4

// ModelSession 控制器依赖的模型会话，由 backend.Session 实现
type ModelSession interface {
	Initialize(ctx context.Context) error
	Generate(ctx context.Context, req params.Request) ([]image.Image, error)
	Close() error
}

// GenerationResult 工作协程返回给主循环的结果
type GenerationResult struct {
	Request params.Request
	Images  []image.Image
	Err     error
}

// Config 控制器的依赖
type Config struct {
	Panel   *params.Panel
	Session ModelSession
	Store   *gallery.Store
	// Device 只用于状态消息
	Device string
	// History 与 HistoryDB 可为空，为空时不记录历史
	History   history.Repository
	HistoryDB io.Closer
	Bus       EventBus
	Logger    *log.Logger
	// Seed 为空时使用 params.CryptoSeed
	Seed      params.SeedSource
	SessionID string
}

// Controller 生成状态机。除 RunGeneration 外的方法都只能在主循环中调用。
type Controller struct {
	panel     *params.Panel
	session   ModelSession
	store     *gallery.Store
	device    string
	history   history.Repository
	historyDB io.Closer
	bus       EventBus
	logger    *log.Logger
	seed      params.SeedSource
	sessionID string

	state SessionState
}

// New 创建控制器
func New(cfg *Config) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("missing controller config")
	}
	if cfg.Panel == nil {
		return nil, errors.New("missing Panel parameter")
	}
	if cfg.Session == nil {
		return nil, errors.New("missing Session parameter")
	}
	if cfg.Store == nil {
		return nil, errors.New("missing Store parameter")
	}

	bus := cfg.Bus
	if bus == nil {
		bus = NewMemoryEventBus()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	seed := cfg.Seed
	if seed == nil {
		seed = params.CryptoSeed
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return &Controller{
		panel:     cfg.Panel,
		session:   cfg.Session,
		store:     cfg.Store,
		device:    cfg.Device,
		history:   cfg.History,
		historyDB: cfg.HistoryDB,
		bus:       bus,
		logger:    logger.WithPrefix("studio"),
		seed:      seed,
		sessionID: sessionID,
	}, nil
}

func (c *Controller) Panel() *params.Panel    { return c.panel }
func (c *Controller) Gallery() *gallery.Store { return c.store }
func (c *Controller) Bus() EventBus           { return c.bus }
func (c *Controller) SessionID() string       { return c.sessionID }

// State 返回状态快照
func (c *Controller) State() SessionState {
	s := c.state
	s.LastBatch = append([]*gallery.GeneratedImage(nil), c.state.LastBatch...)
	s.LastResult = append([]image.Image(nil), c.state.LastResult...)
	return s
}

func (c *Controller) status(level StatusLevel, format string, args ...interface{}) {
	c.bus.Publish(NewStatusEvent(level, fmt.Sprintf(format, args...)))
}

// Initialize 加载模型。阻塞调用，在主循环中直接执行。
func (c *Controller) Initialize(ctx context.Context) error {
	if c.state.Closed {
		return nil
	}

	prev := c.state.Phase
	if prev == PhaseIdle {
		c.state.Phase = PhaseAwaitingModel
	}
	err := c.session.Initialize(ctx)
	if c.state.Phase == PhaseAwaitingModel {
		c.state.Phase = PhaseIdle
	}

	if err != nil {
		c.state.ModelReady = false
		c.logger.Error("模型初始化失败", "err", err)
		c.status(StatusError, "模型初始化失败: %v", err)
		return err
	}

	c.state.ModelReady = true
	c.logger.Info("模型已就绪", "device", c.device)
	c.bus.Publish(NewModelReadyEvent(c.device))
	c.status(StatusInfo, "模型已初始化")
	return nil
}

// BeginGeneration 检查守卫并固定请求。模型未就绪、已有生成任务或已关闭时返回 false，不做任何修改。
func (c *Controller) BeginGeneration() (params.Request, bool) {
	if c.state.Closed || !c.state.ModelReady || c.state.PendingGeneration {
		c.logger.Debug("忽略生成请求",
			"ready", c.state.ModelReady, "pending", c.state.PendingGeneration, "closed", c.state.Closed)
		return params.Request{}, false
	}

	req := params.NewRequest(c.panel.Snapshot(), c.seed)
	c.state.PendingGeneration = true
	c.state.Phase = PhaseGenerating
	c.logger.Info("开始生成", "seed", req.Seed, "sampler", req.Sampler, "steps", req.NumSteps)
	return req, true
}

// RunGeneration 在工作协程中执行，只调用模型会话，不修改控制器状态
func (c *Controller) RunGeneration(ctx context.Context, req params.Request) GenerationResult {
	images, err := c.session.Generate(ctx, req)
	return GenerationResult{Request: req, Images: images, Err: err}
}

// CompleteGeneration 在主循环中处理工作协程的结果。关闭后到达的结果直接丢弃。
func (c *Controller) CompleteGeneration(res GenerationResult) {
	if c.state.Closed {
		c.logger.Debug("会话已关闭，丢弃生成结果", "seed", res.Request.Seed)
		return
	}

	c.state.PendingGeneration = false
	c.state.Phase = PhaseIdle

	if res.Err != nil {
		c.logger.Error("生成失败", "seed", res.Request.Seed, "err", res.Err)
		c.status(StatusError, "生成失败: %v", res.Err)
		return
	}

	images := nonNil(res.Images)
	if len(images) == 0 {
		c.logger.Warn("生成结果为空", "seed", res.Request.Seed, "returned", len(res.Images))
		c.status(StatusError, "生成失败: 后端没有返回图片")
		return
	}
	kept := images
	if len(kept) > MaxBatch {
		kept = kept[:MaxBatch]
	}

	added, err := c.store.Append(kept)
	if err != nil {
		c.logger.Error("保存生成结果失败", "err", err, "saved", len(added))
		c.status(StatusError, "保存生成结果失败: %v", err)
	}
	if len(added) == 0 {
		return
	}

	c.state.LastBatch = added
	c.state.LastResult = images
	c.state.LastRequest = res.Request
	c.record(res.Request, added)

	c.bus.Publish(NewGalleryExtendedEvent(added))
	c.bus.Publish(NewPreviewChangedEvent(added[0].Index, added[0].Full))
	if err == nil {
		c.status(StatusInfo, "已生成 %d 张图片 (seed %d)", len(added), res.Request.Seed)
	}
}

func nonNil(images []image.Image) []image.Image {
	out := make([]image.Image, 0, len(images))
	for _, img := range images {
		if img != nil {
			out = append(out, img)
		}
	}
	return out
}

// record 写入历史，失败只记录日志
func (c *Controller) record(req params.Request, added []*gallery.GeneratedImage) {
	if c.history == nil {
		return
	}
	for _, img := range added {
		_, err := c.history.Create(context.Background(), &history.Record{
			SessionID:             c.sessionID,
			ImageIndex:            img.Index,
			Path:                  img.Path,
			Prompt:                req.Prompt,
			NegativePriorPrompt:   req.NegativePriorPrompt,
			NegativeDecoderPrompt: req.NegativeDecoderPrompt,
			Seed:                  req.Seed,
			Sampler:               string(req.Sampler),
			NumSteps:              req.NumSteps,
			GuidanceScale:         req.GuidanceScale,
			Height:                req.Height,
			Width:                 req.Width,
			PriorCFScale:          req.PriorCFScale,
			PriorSteps:            req.PriorSteps,
		})
		if err != nil {
			c.logger.Warn("写入历史失败", "index", img.Index, "err", err)
		}
	}
}

// SelectThumbnail 预览画廊中的第 index 张图片。索引无效或解码失败时返回 false。
func (c *Controller) SelectThumbnail(index int) bool {
	img, ok := c.store.Select(index)
	if !ok {
		c.logger.Debug("忽略缩略图选择", "index", index, "len", c.store.Len())
		return false
	}
	c.bus.Publish(NewPreviewChangedEvent(index, img))
	return true
}

// SaveBatch 把最近一次生成返回的全部图片另存到 dir，包括画廊没有保留的部分，
// 同时写入批次报告。还没有结果时不做任何事。
func (c *Controller) SaveBatch(dir string) (int, error) {
	if !c.state.HasBatch() {
		return 0, nil
	}
	if dir == "" {
		return 0, errors.New("保存目录为空")
	}

	paths, err := gallery.SaveBatch(dir, c.state.LastResult)
	if err != nil {
		c.logger.Error("另存失败", "dir", dir, "err", err)
		c.status(StatusError, "保存图片失败: %v", err)
		return len(paths), err
	}

	if err := WriteBatchReport(dir, c.state.LastRequest, paths); err != nil {
		c.logger.Warn("写入批次报告失败", "dir", dir, "err", err)
	}

	c.logger.Info("图片已保存", "dir", dir, "count", len(paths))
	c.bus.Publish(NewBatchSavedEvent(dir, paths))
	c.status(StatusInfo, "图片已保存到 %s", dir)
	return len(paths), nil
}

// Close 关闭会话，释放模型句柄和历史数据库。可重复调用。
func (c *Controller) Close() error {
	if c.state.Closed {
		return nil
	}
	c.state.Closed = true
	c.state.Phase = PhaseIdle

	var errs []error
	if err := c.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("释放模型失败: %w", err))
	}
	if c.historyDB != nil {
		if err := c.historyDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭历史数据库失败: %w", err))
		}
	}
	c.logger.Info("会话已关闭", "images", c.store.Len())
	return errors.Join(errs...)
}
