package params

import (
	"strconv"
	"strings"
)

// Slider 有范围约束的滑块，拒绝越界写入
type Slider struct {
	min   int
	max   int
	value int
}

// NewSlider 创建滑块，初始值会被限制在范围内
func NewSlider(min, max, value int) *Slider {
	s := &Slider{min: min, max: max, value: min}
	s.Set(value)
	return s
}

// Value 当前值
func (s *Slider) Value() int { return s.value }

// Set 写入新值，越界时不做任何改变并返回 false
func (s *Slider) Set(v int) bool {
	if v < s.min || v > s.max {
		return false
	}
	s.value = v
	return true
}

// control 一个数值参数的滑块和文本框
type control struct {
	spec   Spec
	slider *Slider
	text   string
}

// Panel 持有全部生成参数，并保持滑块与文本框双向同步
type Panel struct {
	prompt                string
	negativePriorPrompt   string
	negativeDecoderPrompt string
	seedText              string
	sampler               Sampler
	controls              map[Key]*control
}

// Defaults 面板的初始值，零值字段使用内置默认值
type Defaults struct {
	Sampler Sampler
	Values  map[Key]int
}

// NewPanel 使用默认值创建参数面板
func NewPanel(defaults Defaults) *Panel {
	p := &Panel{
		sampler:  SamplerP,
		controls: make(map[Key]*control, len(Specs)),
	}
	p.SetSampler(defaults.Sampler)
	for _, spec := range Specs {
		v := spec.Default
		if dv, ok := defaults.Values[spec.Key]; ok && dv >= spec.Min && dv <= spec.Max {
			v = dv
		}
		p.controls[spec.Key] = &control{
			spec:   spec,
			slider: NewSlider(spec.Min, spec.Max, v),
			text:   strconv.Itoa(v),
		}
	}
	return p
}

// OnSliderChanged 滑块移动：值原样写入对应文本框
func (p *Panel) OnSliderChanged(key Key, value int) {
	c, ok := p.controls[key]
	if !ok {
		return
	}
	if !c.slider.Set(value) {
		return
	}
	c.text = strconv.Itoa(c.slider.Value())
}

// OnTextChanged 文本框编辑：能解析为整数时写入滑块，否则保持原状
func (p *Panel) OnTextChanged(key Key, text string) {
	c, ok := p.controls[key]
	if !ok {
		return
	}
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return
	}
	c.text = text
	c.slider.Set(v)
}

// SliderValue 读取滑块值
func (p *Panel) SliderValue(key Key) int {
	if c, ok := p.controls[key]; ok {
		return c.slider.Value()
	}
	return 0
}

// Text 读取文本框内容
func (p *Panel) Text(key Key) string {
	if c, ok := p.controls[key]; ok {
		return c.text
	}
	return ""
}

// Step 按步长移动滑块，等价于用户拖动滑块
func (p *Panel) Step(key Key, delta int) {
	c, ok := p.controls[key]
	if !ok {
		return
	}
	v := c.slider.Value() + delta
	if v < c.spec.Min {
		v = c.spec.Min
	}
	if v > c.spec.Max {
		v = c.spec.Max
	}
	p.OnSliderChanged(key, v)
}

func (p *Panel) SetPrompt(s string)                { p.prompt = s }
func (p *Panel) SetNegativePriorPrompt(s string)   { p.negativePriorPrompt = s }
func (p *Panel) SetNegativeDecoderPrompt(s string) { p.negativeDecoderPrompt = s }
func (p *Panel) SetSeedText(s string)              { p.seedText = s }

// Sampler 当前采样器
func (p *Panel) Sampler() Sampler { return p.sampler }

// SetSampler 设置采样器，未知名称被忽略
func (p *Panel) SetSampler(s Sampler) {
	if _, err := ParseSampler(string(s)); err == nil {
		p.sampler = s
	}
}

// CycleSampler 在固定列表中循环切换采样器
func (p *Panel) CycleSampler(delta int) {
	idx := 0
	for i, s := range Samplers {
		if s == p.sampler {
			idx = i
			break
		}
	}
	n := len(Samplers)
	idx = ((idx+delta)%n + n) % n
	p.sampler = Samplers[idx]
}

// Snapshot 返回当前参数的副本；数值取自滑块
func (p *Panel) Snapshot() Parameters {
	params := Parameters{
		Prompt:                p.prompt,
		NegativePriorPrompt:   p.negativePriorPrompt,
		NegativeDecoderPrompt: p.negativeDecoderPrompt,
		SeedText:              p.seedText,
		Sampler:               p.sampler,
	}
	for key, c := range p.controls {
		params.set(key, c.slider.Value())
	}
	return params
}
