package tui

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
	"github.com/Zacy-Sokach/PolyCanvas/internal/studio"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Version 由 main 包设置
var Version string

// 焦点顺序：四个文本字段、采样器、六个数值参数、画廊
const (
	focusSampler = 4
	focusParams  = 5
)

var focusGallery = focusParams + len(params.Specs)

const (
	thumbCols    = 12
	thumbRows    = 6
	formWidth    = 52
	sliderWidth  = 18
	footerHeight = thumbRows + 3 + 3 + 2
)

// DefaultSaveDir 全部保存时预填的目录
const DefaultSaveDir = "saved"

type Model struct {
	ctrl   *studio.Controller
	logger *log.Logger
	keys   keyMap
	help   help.Model

	prompts [4]textinput.Model
	inputs  []textinput.Model
	focus   int

	spinner spinner.Model
	body    viewport.Model

	// 每张缩略图只渲染一次
	thumbs []string
	cursor int

	preview      image.Image
	previewIndex int
	previewCache string
	previewKey   [3]int

	status    string
	statusErr bool
	// device 模型就绪后所在的设备
	device string

	saving    bool
	saveInput textinput.Model

	ctx    context.Context
	width  int
	height int
	ready  bool
	closed bool
}

// New 创建界面模型并订阅控制器的通知
func New(ctx context.Context, ctrl *studio.Controller, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.Default()
	}

	m := &Model{
		ctrl:         ctrl,
		logger:       logger.WithPrefix("tui"),
		keys:         defaultKeyMap(),
		help:         help.New(),
		previewIndex: -1,
		ctx:          ctx,
	}

	placeholders := [4]string{"描述你想要的画面", "", "", "留空则随机"}
	for i := range m.prompts {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholders[i]
		ti.Width = formWidth - 18
		m.prompts[i] = ti
	}

	panel := ctrl.Panel()
	m.inputs = make([]textinput.Model, len(params.Specs))
	for i, spec := range params.Specs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 5
		ti.Width = 6
		ti.SetValue(panel.Text(spec.Key))
		m.inputs[i] = ti
	}
	m.prompts[0].Focus()

	m.saveInput = textinput.New()
	m.saveInput.Prompt = "保存到: "
	m.saveInput.Width = 40

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot

	m.subscribe(ctrl.Bus())
	return m
}

// subscribe 控制器只发出通知，由界面决定如何呈现
func (m *Model) subscribe(bus studio.EventBus) {
	bus.Subscribe(studio.EventTypeModelReady, studio.NewHandlerFunc(func(e studio.Event) error {
		m.device = e.(*studio.ModelReadyEvent).Device
		return nil
	}))
	bus.Subscribe(studio.EventTypeGalleryExtended, studio.NewHandlerFunc(func(e studio.Event) error {
		ev := e.(*studio.GalleryExtendedEvent)
		for _, img := range ev.Images {
			m.thumbs = append(m.thumbs, RenderHalfBlocks(img.Thumbnail, thumbCols, thumbRows))
		}
		if len(ev.Images) > 0 {
			m.cursor = ev.Images[0].Index
		}
		return nil
	}))
	bus.Subscribe(studio.EventTypePreviewChanged, studio.NewHandlerFunc(func(e studio.Event) error {
		ev := e.(*studio.PreviewChangedEvent)
		m.preview = ev.Image
		m.previewIndex = ev.Index
		m.previewCache = ""
		return nil
	}))
	bus.Subscribe(studio.EventTypeStatus, studio.NewHandlerFunc(func(e studio.Event) error {
		ev := e.(*studio.StatusEvent)
		m.status = ev.Message
		m.statusErr = ev.Level == studio.StatusError
		return nil
	}))
	bus.Subscribe(studio.EventTypeBatchSaved, studio.NewHandlerFunc(func(e studio.Event) error {
		m.saving = false
		return nil
	}))
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.body, cmd = m.body.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.ctrl.State().PendingGeneration {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if cmd, ok := m.dispatch(msg); ok {
		return m, cmd
	}

	// 光标闪烁等消息交给当前输入框
	return m, m.updateFocused(msg)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	bodyHeight := height - footerHeight
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	if !m.ready {
		m.body = viewport.New(width, bodyHeight)
		m.ready = true
	} else {
		m.body.Width = width
		m.body.Height = bodyHeight
	}
	m.help.Width = width
	m.previewCache = ""
}

// handleKey 把按键解码为类型化事件
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		cmd, _ := m.dispatch(CloseRequested{})
		return cmd
	}

	if m.saving {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.saving = false
			m.saveInput.Blur()
			return nil
		case key.Matches(msg, m.keys.Select):
			dir := strings.TrimSpace(m.saveInput.Value())
			m.saving = false
			m.saveInput.Blur()
			cmd, _ := m.dispatch(SaveRequested{Dir: dir})
			return cmd
		}
		var cmd tea.Cmd
		m.saveInput, cmd = m.saveInput.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Initialize):
		cmd, _ := m.dispatch(InitializeRequested{})
		return cmd
	case key.Matches(msg, m.keys.Generate):
		cmd, _ := m.dispatch(GenerateRequested{})
		return cmd
	case key.Matches(msg, m.keys.Save):
		return m.openSavePrompt()
	case key.Matches(msg, m.keys.Next):
		return m.setFocus(m.focus + 1)
	case key.Matches(msg, m.keys.Prev):
		return m.setFocus(m.focus - 1)
	}

	switch {
	case m.focus == focusGallery:
		return m.handleGalleryKey(msg)
	case m.focus == focusSampler:
		if delta := m.stepOf(msg); delta != 0 {
			cmd, _ := m.dispatch(SamplerChanged{Delta: sign(delta)})
			return cmd
		}
		return nil
	case m.focus >= focusParams:
		return m.handleParamKey(msg, m.focus-focusParams)
	}
	return m.handlePromptKey(msg, PromptField(m.focus))
}

// stepOf 方向键对应的步长，其他按键返回 0
func (m *Model) stepOf(msg tea.KeyMsg) int {
	switch {
	case key.Matches(msg, m.keys.Left):
		return -1
	case key.Matches(msg, m.keys.Right):
		return 1
	case key.Matches(msg, m.keys.BigLeft):
		return -10
	case key.Matches(msg, m.keys.BigRight):
		return 10
	}
	return 0
}

func (m *Model) handleGalleryKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Select) {
		cmd, _ := m.dispatch(ThumbnailSelected{Index: m.cursor})
		return cmd
	}
	if delta := m.stepOf(msg); delta != 0 {
		m.cursor += delta
		if m.cursor >= len(m.thumbs) {
			m.cursor = len(m.thumbs) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
	}
	return nil
}

func (m *Model) handleParamKey(msg tea.KeyMsg, i int) tea.Cmd {
	spec := params.Specs[i]
	if delta := m.stepOf(msg); delta != 0 {
		v := m.ctrl.Panel().SliderValue(spec.Key) + delta
		if v < spec.Min {
			v = spec.Min
		}
		if v > spec.Max {
			v = spec.Max
		}
		cmd, _ := m.dispatch(SliderChanged{Key: spec.Key, Value: v})
		return cmd
	}

	before := m.inputs[i].Value()
	var cmd tea.Cmd
	m.inputs[i], cmd = m.inputs[i].Update(msg)
	if after := m.inputs[i].Value(); after != before {
		m.dispatch(TextChanged{Key: spec.Key, Text: after})
	}
	return cmd
}

func (m *Model) handlePromptKey(msg tea.KeyMsg, field PromptField) tea.Cmd {
	before := m.prompts[field].Value()
	var cmd tea.Cmd
	m.prompts[field], cmd = m.prompts[field].Update(msg)
	if after := m.prompts[field].Value(); after != before {
		m.dispatch(PromptChanged{Field: field, Text: after})
	}
	return cmd
}

func (m *Model) openSavePrompt() tea.Cmd {
	if !m.ctrl.State().HasBatch() {
		m.status = "还没有可保存的图片"
		m.statusErr = false
		return nil
	}
	m.saving = true
	if m.saveInput.Value() == "" {
		m.saveInput.SetValue(DefaultSaveDir)
	}
	m.saveInput.CursorEnd()
	return m.saveInput.Focus()
}

// dispatch 把类型化事件交给控制器或参数面板；不是事件时返回 false
func (m *Model) dispatch(msg tea.Msg) (tea.Cmd, bool) {
	panel := m.ctrl.Panel()

	switch msg := msg.(type) {
	case InitializeRequested:
		// 加载模型在主循环中同步执行
		if err := m.ctrl.Initialize(m.ctx); err != nil {
			m.logger.Warn("加载模型失败", "err", err)
		}
		return nil, true

	case GenerateRequested:
		req, ok := m.ctrl.BeginGeneration()
		if !ok {
			return nil, true
		}
		m.status = "生成中..."
		m.statusErr = false
		return tea.Batch(m.spinner.Tick, m.runGeneration(req)), true

	case GenerationResultMsg:
		m.ctrl.CompleteGeneration(msg.Result)
		return nil, true

	case ThumbnailSelected:
		if m.ctrl.SelectThumbnail(msg.Index) {
			m.cursor = msg.Index
		}
		return nil, true

	case SaveRequested:
		if _, err := m.ctrl.SaveBatch(msg.Dir); err != nil {
			m.status = fmt.Sprintf("保存失败: %v", err)
			m.statusErr = true
		}
		return nil, true

	case SliderChanged:
		panel.OnSliderChanged(msg.Key, msg.Value)
		m.syncInput(msg.Key)
		return nil, true

	case TextChanged:
		panel.OnTextChanged(msg.Key, msg.Text)
		if i := specIndex(msg.Key); i >= 0 && m.inputs[i].Value() != msg.Text {
			m.inputs[i].SetValue(msg.Text)
		}
		return nil, true

	case PromptChanged:
		switch msg.Field {
		case FieldPrompt:
			panel.SetPrompt(msg.Text)
		case FieldNegativePrior:
			panel.SetNegativePriorPrompt(msg.Text)
		case FieldNegativeDecoder:
			panel.SetNegativeDecoderPrompt(msg.Text)
		case FieldSeed:
			panel.SetSeedText(msg.Text)
		default:
			return nil, true
		}
		if m.prompts[msg.Field].Value() != msg.Text {
			m.prompts[msg.Field].SetValue(msg.Text)
		}
		return nil, true

	case SamplerChanged:
		panel.CycleSampler(msg.Delta)
		return nil, true

	case CloseRequested:
		if !m.closed {
			m.closed = true
			if err := m.ctrl.Close(); err != nil {
				m.logger.Error("关闭会话失败", "err", err)
			}
		}
		return tea.Quit, true
	}
	return nil, false
}

// runGeneration 在 tea.Cmd 中调用后端，结果作为普通消息回到主循环
func (m *Model) runGeneration(req params.Request) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return GenerationResultMsg{Result: ctrl.RunGeneration(ctx, req)}
	}
}

func (m *Model) syncInput(k params.Key) {
	if i := specIndex(k); i >= 0 {
		m.inputs[i].SetValue(m.ctrl.Panel().Text(k))
	}
}

func (m *Model) setFocus(next int) tea.Cmd {
	total := focusGallery + 1
	next = (next%total + total) % total

	for i := range m.prompts {
		m.prompts[i].Blur()
	}
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = next

	switch {
	case next < focusSampler:
		return m.prompts[next].Focus()
	case next >= focusParams && next < focusGallery:
		return m.inputs[next-focusParams].Focus()
	}
	return nil
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.saving:
		m.saveInput, cmd = m.saveInput.Update(msg)
	case m.focus < focusSampler:
		m.prompts[m.focus], cmd = m.prompts[m.focus].Update(msg)
	case m.focus >= focusParams && m.focus < focusGallery:
		i := m.focus - focusParams
		m.inputs[i], cmd = m.inputs[i].Update(msg)
	}
	return cmd
}

func specIndex(k params.Key) int {
	for i, spec := range params.Specs {
		if spec.Key == k {
			return i
		}
	}
	return -1
}

func sign(v int) int {
	if v < 0 {
		return -1
	}
	return 1
}

func (m *Model) View() string {
	if !m.ready {
		return "初始化中..."
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.formView(), m.previewView())
	m.body.SetContent(body)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.body.View(),
		m.galleryView(),
		m.actionsView(),
		m.statusView(),
		m.help.View(m.keys),
	)
}

func (m *Model) label(focus int, text string) string {
	if m.focus == focus && !m.saving {
		return focusStyle.Render("› " + text)
	}
	return labelStyle.Render("  " + text)
}

func (m *Model) formView() string {
	var sb strings.Builder
	title := "PolyCanvas"
	if Version != "" {
		title += " " + Version
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	names := [4]string{"Prompt", "Neg. prior", "Neg. decoder", "Seed"}
	for i := range m.prompts {
		sb.WriteString(m.label(i, names[i]) + m.prompts[i].View() + "\n")
	}

	sampler := string(m.ctrl.Panel().Sampler())
	sb.WriteString(m.label(focusSampler, "Sampler") + "‹ " + sampler + " ›\n\n")

	panel := m.ctrl.Panel()
	for i, spec := range params.Specs {
		slider := renderSlider(panel.SliderValue(spec.Key), spec.Min, spec.Max, sliderWidth)
		sb.WriteString(m.label(focusParams+i, spec.Label) + slider + " " + m.inputs[i].View() + "\n")
	}
	return panelStyle.Width(formWidth).Render(sb.String())
}

func (m *Model) previewSize() (int, int) {
	cols := m.width - formWidth - 6
	rows := m.body.Height - 2
	if cols < 10 {
		cols = 10
	}
	if rows < 4 {
		rows = 4
	}
	return cols, rows
}

func (m *Model) previewView() string {
	if m.preview == nil {
		return previewStyle.Render(dimStyle.Render("暂无预览"))
	}
	cols, rows := m.previewSize()
	k := [3]int{m.previewIndex, cols, rows}
	if m.previewCache == "" || m.previewKey != k {
		m.previewCache = RenderHalfBlocks(m.preview, cols, rows)
		m.previewKey = k
	}
	caption := dimStyle.Render(fmt.Sprintf("image_%d.png", m.previewIndex))
	return previewStyle.Render(lipgloss.JoinVertical(lipgloss.Left, m.previewCache, caption))
}

// galleryView 缩略图条，只显示光标附近能放下的部分
func (m *Model) galleryView() string {
	if len(m.thumbs) == 0 {
		return dimStyle.Render("  画廊为空")
	}

	perRow := (m.width - 2) / (thumbCols + 2)
	if perRow < 1 {
		perRow = 1
	}
	start := 0
	if m.cursor >= perRow {
		start = m.cursor - perRow + 1
	}
	end := start + perRow
	if end > len(m.thumbs) {
		end = len(m.thumbs)
	}

	cells := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		style := cellStyle
		if i == m.cursor && m.focus == focusGallery {
			style = cellSelectedStyle
		}
		cell := lipgloss.JoinVertical(lipgloss.Center,
			style.Width(thumbCols).Height(thumbRows).Render(m.thumbs[i]),
			dimStyle.Render(fmt.Sprintf("#%d", i)),
		)
		cells = append(cells, cell)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *Model) actionsView() string {
	if m.saving {
		return buttonStyle.Render(m.saveInput.View())
	}

	st := m.ctrl.State()
	button := func(enabled bool, text string) string {
		if enabled {
			return buttonStyle.Render(text)
		}
		return buttonDisabledStyle.Render(text)
	}

	generate := "生成 [ctrl+g]"
	if st.PendingGeneration {
		generate = m.spinner.View() + " 生成中"
	}
	load := "加载模型 [ctrl+l]"
	if st.ModelReady && m.device != "" {
		load = "模型已就绪 (" + m.device + ")"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		button(!st.ModelReady, load),
		button(st.ModelReady && !st.PendingGeneration, generate),
		button(st.HasBatch(), "全部保存 [ctrl+s]"),
	)
}

func (m *Model) statusView() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return statusErrorStyle.Render(m.status)
	}
	return statusStyle.Render(m.status)
}
