package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

// upperHalf 每个字符格显示上下两个像素：前景色为上，背景色为下
const upperHalf = "▀"

// fitCells 在 cols × rows 字符格内按比例放置图片，返回像素尺寸（高度为行数的两倍）
func fitCells(b image.Rectangle, cols, rows int) (int, int) {
	if b.Dx() <= 0 || b.Dy() <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	w, h := cols, cols*b.Dy()/b.Dx()
	if h > rows*2 {
		h = rows * 2
		w = rows * 2 * b.Dx() / b.Dy()
	}
	if w < 1 {
		w = 1
	}
	if h < 2 {
		h = 2
	}
	// 行数按两个像素一行取整
	h += h % 2
	return w, h
}

// RenderHalfBlocks 用半块字符把图片画进 cols × rows 的区域
func RenderHalfBlocks(img image.Image, cols, rows int) string {
	if img == nil {
		return ""
	}
	w, h := fitCells(img.Bounds(), cols, rows)
	if w == 0 {
		return ""
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			top := dst.RGBAAt(x, y)
			bottom := dst.RGBAAt(x, y+1)
			sb.WriteString(lipgloss.NewStyle().
				Foreground(hex(top)).
				Background(hex(bottom)).
				Render(upperHalf))
		}
	}
	return sb.String()
}

func hex(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// renderSlider 文本形式的滑块
func renderSlider(value, min, max, width int) string {
	if width <= 0 || max <= min {
		return ""
	}
	filled := (value - min) * width / (max - min)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return sliderFilledStyle.Render(strings.Repeat("━", filled)) +
		sliderEmptyStyle.Render(strings.Repeat("─", width-filled))
}
