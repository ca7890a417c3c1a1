package params

import (
	"fmt"
	"strconv"
)

// Sampler 采样器名称，与后端约定的字符串一致
type Sampler string

const (
	SamplerP    Sampler = "p_sampler"
	SamplerDDIM Sampler = "ddim_sampler"
	SamplerPLMS Sampler = "plms_sampler"
)

// Samplers 固定的采样器顺序
var Samplers = []Sampler{SamplerP, SamplerDDIM, SamplerPLMS}

// ParseSampler 解析采样器名称
func ParseSampler(s string) (Sampler, error) {
	for _, sampler := range Samplers {
		if string(sampler) == s {
			return sampler, nil
		}
	}
	return "", fmt.Errorf("未知的采样器: %q", s)
}

// Key 数值参数的标识
type Key string

const (
	KeyNumSteps      Key = "num_steps"
	KeyGuidanceScale Key = "guidance_scale"
	KeyHeight        Key = "h"
	KeyWidth         Key = "w"
	KeyPriorCFScale  Key = "prior_cf_scale"
	KeyPriorSteps    Key = "prior_steps"
)

// Spec 描述一个数值参数的标签、范围和默认值
type Spec struct {
	Key     Key
	Label   string
	Min     int
	Max     int
	Default int
}

// Specs 六个数值参数，顺序即界面顺序
var Specs = []Spec{
	{Key: KeyNumSteps, Label: "Num steps", Min: 1, Max: 100, Default: 75},
	{Key: KeyGuidanceScale, Label: "Guidance scale", Min: 1, Max: 20, Default: 10},
	{Key: KeyHeight, Label: "Height", Min: 1, Max: 1024, Default: 768},
	{Key: KeyWidth, Label: "Width", Min: 1, Max: 1024, Default: 768},
	{Key: KeyPriorCFScale, Label: "Prior CF scale", Min: 1, Max: 10, Default: 4},
	{Key: KeyPriorSteps, Label: "Prior steps", Min: 1, Max: 10, Default: 4},
}

// EmptyPromptPlaceholder 空提示词时发送给后端的占位文本
const EmptyPromptPlaceholder = "Text saying empty"

// Parameters 面板当前的参数值
type Parameters struct {
	Prompt                string
	NegativePriorPrompt   string
	NegativeDecoderPrompt string
	SeedText              string
	Sampler               Sampler
	NumSteps              int
	GuidanceScale         int
	Height                int
	Width                 int
	PriorCFScale          int
	PriorSteps            int
}

// Value 按 key 读取数值参数
func (p Parameters) Value(key Key) int {
	switch key {
	case KeyNumSteps:
		return p.NumSteps
	case KeyGuidanceScale:
		return p.GuidanceScale
	case KeyHeight:
		return p.Height
	case KeyWidth:
		return p.Width
	case KeyPriorCFScale:
		return p.PriorCFScale
	case KeyPriorSteps:
		return p.PriorSteps
	}
	return 0
}

func (p *Parameters) set(key Key, v int) {
	switch key {
	case KeyNumSteps:
		p.NumSteps = v
	case KeyGuidanceScale:
		p.GuidanceScale = v
	case KeyHeight:
		p.Height = v
	case KeyWidth:
		p.Width = v
	case KeyPriorCFScale:
		p.PriorCFScale = v
	case KeyPriorSteps:
		p.PriorSteps = v
	}
}

// Request 一次生成请求的不可变快照，种子已确定
type Request struct {
	Prompt                string
	NegativePriorPrompt   string
	NegativeDecoderPrompt string
	Seed                  int64
	Sampler               Sampler
	NumSteps              int
	GuidanceScale         int
	Height                int
	Width                 int
	PriorCFScale          int
	PriorSteps            int
}

// Value 按 key 读取数值参数
func (r Request) Value(key Key) int {
	return Parameters{
		NumSteps:      r.NumSteps,
		GuidanceScale: r.GuidanceScale,
		Height:        r.Height,
		Width:         r.Width,
		PriorCFScale:  r.PriorCFScale,
		PriorSteps:    r.PriorSteps,
	}.Value(key)
}

// PriorStepsString 后端要求 prior_steps 以字符串形式传入
func (r Request) PriorStepsString() string {
	return strconv.Itoa(r.PriorSteps)
}

// NewRequest 根据参数快照构建请求：空提示词替换为占位文本，并解析种子
func NewRequest(p Parameters, source SeedSource) Request {
	prompt := p.Prompt
	if prompt == "" {
		prompt = EmptyPromptPlaceholder
	}
	sampler := p.Sampler
	if sampler == "" {
		sampler = SamplerP
	}
	return Request{
		Prompt:                prompt,
		NegativePriorPrompt:   p.NegativePriorPrompt,
		NegativeDecoderPrompt: p.NegativeDecoderPrompt,
		Seed:                  ResolveSeed(p.SeedText, source),
		Sampler:               sampler,
		NumSteps:              p.NumSteps,
		GuidanceScale:         p.GuidanceScale,
		Height:                p.Height,
		Width:                 p.Width,
		PriorCFScale:          p.PriorCFScale,
		PriorSteps:            p.PriorSteps,
	}
}
