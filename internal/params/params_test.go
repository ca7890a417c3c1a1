package params

import (
	"testing"
)

func TestNewRequestEmptyPrompt(t *testing.T) {
	req := NewRequest(Parameters{Prompt: "", SeedText: "1"}, nil)
	if req.Prompt != EmptyPromptPlaceholder {
		t.Errorf("Prompt = %q, want %q", req.Prompt, EmptyPromptPlaceholder)
	}
	if req.Prompt == "" {
		t.Error("占位文本不能为空")
	}
}

func TestNewRequestKeepsPrompt(t *testing.T) {
	req := NewRequest(Parameters{Prompt: "a red fox", SeedText: "42", NumSteps: 75, GuidanceScale: 10}, nil)
	if req.Prompt != "a red fox" {
		t.Errorf("Prompt = %q", req.Prompt)
	}
	if req.Seed != 42 {
		t.Errorf("Seed = %d, want 42", req.Seed)
	}
	if req.NumSteps != 75 || req.GuidanceScale != 10 {
		t.Errorf("数值参数未透传: %+v", req)
	}
	if req.Sampler != SamplerP {
		t.Errorf("空采样器应回退到 p_sampler, got %s", req.Sampler)
	}
}

func TestResolveSeed(t *testing.T) {
	calls := 0
	source := func() int64 {
		calls++
		return 1000 + int64(calls)
	}

	tests := []struct {
		text      string
		want      int64
		wantDrawn bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"0", 0, false},
		{"", 0, true},
		{"abc", 0, true},
		{"4.2", 0, true},
	}

	for _, tt := range tests {
		before := calls
		got := ResolveSeed(tt.text, source)
		drawn := calls > before
		if drawn != tt.wantDrawn {
			t.Errorf("ResolveSeed(%q) drawn = %v, want %v", tt.text, drawn, tt.wantDrawn)
		}
		if !tt.wantDrawn && got != tt.want {
			t.Errorf("ResolveSeed(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCryptoSeedRange(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 20; i++ {
		s := CryptoSeed()
		if s < 0 || s >= MaxRandomSeed {
			t.Fatalf("种子越界: %d", s)
		}
		seen[s] = true
	}
	if len(seen) < 2 {
		t.Error("连续抽取的随机种子不应全部相同")
	}
}

func TestEmptySeedDrawsFreshSeedEachTime(t *testing.T) {
	a := NewRequest(Parameters{}, nil)
	b := NewRequest(Parameters{}, nil)
	if a.Seed == b.Seed {
		t.Errorf("两次空种子生成使用了相同的种子 %d", a.Seed)
	}
}

func TestPriorStepsString(t *testing.T) {
	req := Request{PriorSteps: 4}
	if got := req.PriorStepsString(); got != "4" {
		t.Errorf("PriorStepsString = %q, want \"4\"", got)
	}
}

func TestParseSampler(t *testing.T) {
	for _, s := range Samplers {
		got, err := ParseSampler(string(s))
		if err != nil || got != s {
			t.Errorf("ParseSampler(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseSampler("euler"); err == nil {
		t.Error("未知采样器应返回错误")
	}
}
