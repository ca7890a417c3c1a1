package studio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zacy-Sokach/PolyCanvas/internal/params"
	"github.com/russross/blackfriday/v2"
)

const (
	reportMarkdownFile = "index.md"
	reportHTMLFile     = "index.html"
)

// BatchReportMarkdown 生成批次报告的 Markdown：参数表加图片列表
func BatchReportMarkdown(req params.Request, paths []string) string {
	var sb strings.Builder

	sb.WriteString("# PolyCanvas batch\n\n")
	sb.WriteString("| Parameter | Value |\n|---|---|\n")
	row := func(name string, value interface{}) {
		fmt.Fprintf(&sb, "| %s | %v |\n", name, escapeCell(fmt.Sprint(value)))
	}
	row("Prompt", req.Prompt)
	row("Negative prior prompt", req.NegativePriorPrompt)
	row("Negative decoder prompt", req.NegativeDecoderPrompt)
	row("Seed", req.Seed)
	row("Sampler", req.Sampler)
	for _, spec := range params.Specs {
		row(spec.Label, req.Value(spec.Key))
	}

	sb.WriteString("\n## Images\n\n")
	for i, p := range paths {
		name := filepath.Base(p)
		fmt.Fprintf(&sb, "%d. ![%s](%s)\n", i+1, name, name)
	}
	return sb.String()
}

// cellEscaper 用户输入里的 Markdown 与 HTML 特殊字符按字面显示
var cellEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"<", `\<`,
	">", `\>`,
	"[", `\[`,
	"]", `\]`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"\n", " ",
	"\r", " ",
)

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}

// WriteBatchReport 写入 index.md 和由它渲染出的 index.html
func WriteBatchReport(dir string, req params.Request, paths []string) error {
	md := BatchReportMarkdown(req, paths)
	if err := os.WriteFile(filepath.Join(dir, reportMarkdownFile), []byte(md), 0644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", reportMarkdownFile, err)
	}

	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
	})
	body := blackfriday.Run([]byte(md), blackfriday.WithRenderer(renderer))
	page := "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>PolyCanvas batch</title></head><body>\n" +
		string(body) + "</body></html>\n"
	if err := os.WriteFile(filepath.Join(dir, reportHTMLFile), []byte(page), 0644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", reportHTMLFile, err)
	}
	return nil
}
