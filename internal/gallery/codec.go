package gallery

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	// 后端可能返回 webp 数据
	_ "golang.org/x/image/webp"
)

// ThumbnailSize 缩略图的默认最大边长
const ThumbnailSize = 150

// Thumbnail 等比缩放到 max×max 以内；图片本身更小时原样返回
func Thumbnail(src image.Image, max int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return src
	}

	tw, th := max, max
	if w >= h {
		th = h * max / w
	} else {
		tw = w * max / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// WritePNG 把图片编码为 PNG 写入 path
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建图片文件失败: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := png.Encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("编码 PNG 失败: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("写入图片文件失败: %w", err)
	}
	return f.Close()
}

// DecodeFile 从磁盘解码图片
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开图片文件失败: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}
	return img, nil
}
