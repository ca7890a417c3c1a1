package studio

import (
	"image"

	"github.com/Zacy-Sokach/PolyCanvas/internal/gallery"
	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
)

// Phase 控制器所处阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingModel
	PhaseGenerating
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingModel:
		return "awaiting_model"
	case PhaseGenerating:
		return "generating"
	}
	return "unknown"
}

// SessionState 会话状态，只在主循环中修改
type SessionState struct {
	Phase             Phase
	ModelReady        bool
	PendingGeneration bool
	// LastBatch 最近一次成功生成的图片，首次成功前为空
	LastBatch []*gallery.GeneratedImage
	// LastResult 同一次生成返回的全部图片，另存时使用
	LastResult []image.Image
	// LastRequest 生成 LastBatch 的请求
	LastRequest params.Request
	Closed      bool
}

// HasBatch 是否已有可另存的结果
func (s SessionState) HasBatch() bool {
	return len(s.LastResult) > 0
}
