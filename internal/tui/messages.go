package tui

import (
	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
	"github.com/Zacy-Sokach/PolyCanvas/internal/studio"
)

// 界面输入在 Update 入口处解码为以下类型化事件，再分发给控制器和参数面板

type InitializeRequested struct{}

type GenerateRequested struct{}

type ThumbnailSelected struct {
	Index int
}

type SaveRequested struct {
	Dir string
}

type SliderChanged struct {
	Key   params.Key
	Value int
}

type TextChanged struct {
	Key  params.Key
	Text string
}

// PromptField 文本类字段
type PromptField int

const (
	FieldPrompt PromptField = iota
	FieldNegativePrior
	FieldNegativeDecoder
	FieldSeed
)

type PromptChanged struct {
	Field PromptField
	Text  string
}

type SamplerChanged struct {
	Delta int
}

type CloseRequested struct{}

// GenerationResultMsg 工作协程完成后投递回主循环
type GenerationResultMsg struct {
	Result studio.GenerationResult
}
