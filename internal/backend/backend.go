package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// TaskText2Img 会话固定使用的任务类型
const TaskText2Img = "text2img"

// BatchSize 每次生成固定的批大小
const BatchSize = 1

// Text2ImgArgs 传给后端的参数。PriorSteps 以字符串编码，这是后端接受的格式。
type Text2ImgArgs struct {
	Prompt                string `json:"prompt"`
	NumSteps              int    `json:"num_steps"`
	BatchSize             int    `json:"batch_size"`
	GuidanceScale         int    `json:"guidance_scale"`
	H                     int    `json:"h"`
	W                     int    `json:"w"`
	Sampler               string `json:"sampler"`
	PriorCFScale          int    `json:"prior_cf_scale"`
	PriorSteps            string `json:"prior_steps"`
	NegativePriorPrompt   string `json:"negative_prior_prompt"`
	NegativeDecoderPrompt string `json:"negative_decoder_prompt"`
	Seed                  int64  `json:"seed"`
}

// Backend 生成后端，负责加载模型
type Backend interface {
	Initialize(ctx context.Context, device, taskType string) (Handle, error)
}

// Handle 已加载的模型句柄，不可重入
type Handle interface {
	Generate(ctx context.Context, args Text2ImgArgs) ([]image.Image, error)
	Close() error
}

// ErrModelNotReady 在初始化成功之前请求生成
var ErrModelNotReady = errors.New("模型尚未初始化")

// ErrorKind 生成失败的类别
type ErrorKind int

const (
	KindBackend ErrorKind = iota
	KindEmptyResult
)

func (k ErrorKind) String() string {
	switch k {
	case KindBackend:
		return "backend"
	case KindEmptyResult:
		return "empty_result"
	}
	return "unknown"
}

// GenerationError 后端调用失败
type GenerationError struct {
	Kind ErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("生成失败 (%s)", e.Kind)
	}
	return fmt.Sprintf("生成失败 (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is 同类别的 GenerationError 视为相等
func (e *GenerationError) Is(target error) bool {
	t, ok := target.(*GenerationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
