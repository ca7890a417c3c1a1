package tui

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zacy-Sokach/PolyCanvas/internal/gallery"
	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
	"github.com/Zacy-Sokach/PolyCanvas/internal/studio"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

type countingSession struct {
	images []image.Image
	calls  int
}

func (s *countingSession) Initialize(ctx context.Context) error { return nil }

func (s *countingSession) Generate(ctx context.Context, req params.Request) ([]image.Image, error) {
	s.calls++
	return s.images, nil
}

func (s *countingSession) Close() error { return nil }

func solid(c color.RGBA, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func newTestModel(t *testing.T, session *countingSession) *Model {
	t.Helper()
	store, err := gallery.NewStore(filepath.Join(t.TempDir(), "outputs"), 0)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctrl, err := studio.New(&studio.Config{
		Panel:   params.NewPanel(params.Defaults{}),
		Session: session,
		Store:   store,
		Device:  "cpu",
		Logger:  log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("studio.New failed: %v", err)
	}
	m := New(context.Background(), ctrl, log.New(io.Discard))
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 50})
	return m
}

// runCmd 执行命令并展开 tea.BatchMsg，把得到的消息依次交给 Update
func runCmd(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			runCmd(m, c)
		}
		return
	}
	if _, ok := msg.(GenerationResultMsg); ok {
		m.Update(msg)
	}
}

func press(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSliderAndTextBinding(t *testing.T) {
	m := newTestModel(t, &countingSession{})
	panel := m.ctrl.Panel()

	m.Update(SliderChanged{Key: params.KeyNumSteps, Value: 30})
	if panel.Text(params.KeyNumSteps) != "30" || m.inputs[0].Value() != "30" {
		t.Errorf("text = %q, input = %q", panel.Text(params.KeyNumSteps), m.inputs[0].Value())
	}

	m.Update(TextChanged{Key: params.KeyGuidanceScale, Text: "15"})
	if panel.SliderValue(params.KeyGuidanceScale) != 15 {
		t.Errorf("slider = %d, want 15", panel.SliderValue(params.KeyGuidanceScale))
	}

	m.Update(TextChanged{Key: params.KeyGuidanceScale, Text: "abc"})
	if panel.SliderValue(params.KeyGuidanceScale) != 15 {
		t.Errorf("非数字输入不应改变滑块, got %d", panel.SliderValue(params.KeyGuidanceScale))
	}
}

func TestKeyboardAdjustsFocusedSlider(t *testing.T) {
	m := newTestModel(t, &countingSession{})
	panel := m.ctrl.Panel()

	// Prompt → ... → Sampler → Num steps
	for i := 0; i < focusParams; i++ {
		m.Update(press(tea.KeyTab))
	}
	if m.focus != focusParams {
		t.Fatalf("focus = %d", m.focus)
	}

	m.Update(press(tea.KeyRight))
	if panel.SliderValue(params.KeyNumSteps) != 76 {
		t.Errorf("slider = %d, want 76", panel.SliderValue(params.KeyNumSteps))
	}
	m.Update(press(tea.KeyUp))
	m.Update(press(tea.KeyUp))
	m.Update(press(tea.KeyUp))
	if panel.SliderValue(params.KeyNumSteps) != 100 {
		t.Errorf("slider 应停在上限, got %d", panel.SliderValue(params.KeyNumSteps))
	}
	if m.inputs[0].Value() != "100" {
		t.Errorf("input = %q", m.inputs[0].Value())
	}
}

func TestTypingPromptUpdatesPanel(t *testing.T) {
	session := &countingSession{images: []image.Image{solid(color.RGBA{R: 255, A: 255}, 8, 8)}}
	m := newTestModel(t, session)

	m.Update(runes("a red fox"))
	m.Update(press(tea.KeyTab))
	m.Update(press(tea.KeyTab))
	m.Update(press(tea.KeyTab))
	m.Update(runes("42"))

	m.Update(InitializeRequested{})
	_, cmd := m.Update(GenerateRequested{})
	runCmd(m, cmd)

	st := m.ctrl.State()
	if st.LastRequest.Prompt != "a red fox" || st.LastRequest.Seed != 42 {
		t.Errorf("request = %+v", st.LastRequest)
	}
}

func TestSamplerCycles(t *testing.T) {
	m := newTestModel(t, &countingSession{})
	m.Update(SamplerChanged{Delta: 1})
	if m.ctrl.Panel().Sampler() != params.SamplerDDIM {
		t.Errorf("sampler = %s", m.ctrl.Panel().Sampler())
	}
}

func TestGenerateFlow(t *testing.T) {
	session := &countingSession{images: []image.Image{
		solid(color.RGBA{R: 255, A: 255}, 32, 16),
		solid(color.RGBA{B: 255, A: 255}, 32, 16),
	}}
	m := newTestModel(t, session)

	// 模型未就绪时忽略
	if _, cmd := m.Update(GenerateRequested{}); cmd != nil {
		t.Error("模型未就绪时不应返回命令")
	}

	m.Update(InitializeRequested{})
	if !m.ctrl.State().ModelReady {
		t.Fatal("模型未就绪")
	}
	if m.device != "cpu" || !strings.Contains(m.View(), "模型已就绪 (cpu)") {
		t.Errorf("界面应显示模型所在设备, device = %q", m.device)
	}

	_, cmd := m.Update(GenerateRequested{})
	if cmd == nil {
		t.Fatal("GenerateRequested 应返回工作命令")
	}
	if _, second := m.Update(GenerateRequested{}); second != nil {
		t.Error("生成中再次触发应被忽略")
	}

	runCmd(m, cmd)

	if session.calls != 1 {
		t.Errorf("后端调用 %d 次, want 1", session.calls)
	}
	if len(m.thumbs) != 2 {
		t.Errorf("thumbs = %d, want 2", len(m.thumbs))
	}
	if m.preview == nil || m.previewIndex != 0 {
		t.Errorf("预览应为第一张, index = %d", m.previewIndex)
	}

	view := m.View()
	if !strings.Contains(view, "image_0.png") || !strings.Contains(view, "#1") {
		t.Errorf("View 缺少画廊或预览:\n%s", view)
	}
}

func TestGalleryNavigation(t *testing.T) {
	session := &countingSession{images: []image.Image{
		solid(color.RGBA{R: 255, A: 255}, 8, 8),
		solid(color.RGBA{G: 255, A: 255}, 8, 8),
	}}
	m := newTestModel(t, session)
	m.Update(InitializeRequested{})
	_, cmd := m.Update(GenerateRequested{})
	runCmd(m, cmd)

	m.Update(press(tea.KeyShiftTab))
	if m.focus != focusGallery {
		t.Fatalf("focus = %d, want gallery", m.focus)
	}
	m.Update(press(tea.KeyRight))
	m.Update(press(tea.KeyRight))
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
	m.Update(press(tea.KeyEnter))
	if m.previewIndex != 1 {
		t.Errorf("previewIndex = %d, want 1", m.previewIndex)
	}

	m.Update(ThumbnailSelected{Index: 7})
	if m.previewIndex != 1 || m.cursor != 1 {
		t.Error("越界选择不应改变预览")
	}
}

func TestSaveFlow(t *testing.T) {
	session := &countingSession{images: []image.Image{solid(color.RGBA{R: 255, A: 255}, 8, 8)}}
	m := newTestModel(t, session)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.saving {
		t.Error("没有结果时不应打开保存提示")
	}

	m.Update(InitializeRequested{})
	_, cmd := m.Update(GenerateRequested{})
	runCmd(m, cmd)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if !m.saving {
		t.Fatal("保存提示未打开")
	}
	m.Update(press(tea.KeyEsc))
	if m.saving {
		t.Error("Esc 应取消保存")
	}

	dir := filepath.Join(t.TempDir(), "batch")
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m.saveInput.SetValue(dir)
	m.Update(press(tea.KeyEnter))

	for _, name := range []string{"image_0.png", "index.md", "index.html"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s 不存在: %v", name, err)
		}
	}
}

func TestCloseDiscardsLateResult(t *testing.T) {
	session := &countingSession{images: []image.Image{solid(color.RGBA{R: 255, A: 255}, 8, 8)}}
	m := newTestModel(t, session)
	m.Update(InitializeRequested{})

	_, cmd := m.Update(GenerateRequested{})

	_, quit := m.Update(press(tea.KeyCtrlC))
	if quit == nil {
		t.Fatal("Ctrl+C 应返回退出命令")
	}
	if _, ok := quit().(tea.QuitMsg); !ok {
		t.Error("Ctrl+C 应返回 tea.Quit")
	}

	runCmd(m, cmd)
	if len(m.thumbs) != 0 || m.ctrl.Gallery().Len() != 0 {
		t.Error("关闭后的结果应被丢弃")
	}
}

func TestRenderHalfBlocks(t *testing.T) {
	out := RenderHalfBlocks(solid(color.RGBA{R: 255, A: 255}, 40, 20), 20, 20)
	lines := strings.Split(out, "\n")
	// 40x20 缩放到 20 列，高 10 像素，即 5 行
	if len(lines) != 5 {
		t.Errorf("lines = %d, want 5", len(lines))
	}
	if n := strings.Count(lines[0], upperHalf); n != 20 {
		t.Errorf("cells = %d, want 20", n)
	}

	if RenderHalfBlocks(nil, 10, 10) != "" {
		t.Error("nil 图片应返回空字符串")
	}
}

func TestFitCells(t *testing.T) {
	tests := []struct {
		w, h       int
		cols, rows int
		wantW      int
		wantH      int
	}{
		{100, 100, 10, 10, 10, 10},
		{200, 100, 10, 10, 10, 6},
		{100, 400, 10, 10, 5, 20},
	}
	for _, tt := range tests {
		w, h := fitCells(image.Rect(0, 0, tt.w, tt.h), tt.cols, tt.rows)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitCells(%dx%d, %d, %d) = %d, %d, want %d, %d",
				tt.w, tt.h, tt.cols, tt.rows, w, h, tt.wantW, tt.wantH)
		}
	}
}
