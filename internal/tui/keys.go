package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Next       key.Binding
	Prev       key.Binding
	Left       key.Binding
	Right      key.Binding
	BigLeft    key.Binding
	BigRight   key.Binding
	Select     key.Binding
	Initialize key.Binding
	Generate   key.Binding
	Save       key.Binding
	Cancel     key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "下一项")),
		Prev:       key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "上一项")),
		Left:       key.NewBinding(key.WithKeys("left"), key.WithHelp("←/→", "调整")),
		Right:      key.NewBinding(key.WithKeys("right")),
		BigLeft:    key.NewBinding(key.WithKeys("down", "pgdown"), key.WithHelp("↑/↓", "±10")),
		BigRight:   key.NewBinding(key.WithKeys("up", "pgup")),
		Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "预览")),
		Initialize: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "加载模型")),
		Generate:   key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "生成")),
		Save:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "全部保存")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "取消")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "退出")),
	}
}

// ShortHelp 实现 help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Left, k.BigLeft, k.Select, k.Initialize, k.Generate, k.Save, k.Quit}
}

// FullHelp 实现 help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Left, k.BigLeft, k.Select},
		{k.Initialize, k.Generate, k.Save, k.Cancel, k.Quit},
	}
}
