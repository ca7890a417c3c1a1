package gallery

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
)

// ErrOutOfRange 画廊索引越界
var ErrOutOfRange = errors.New("画廊索引越界")

// ErrNilImage 图片为空
var ErrNilImage = errors.New("图片为空")

// GeneratedImage 一张已持久化的生成结果，创建后不再修改
type GeneratedImage struct {
	Index     int
	Full      image.Image
	Path      string
	Thumbnail image.Image
}

// Store 只追加的画廊，按全局索引持久化到输出目录
type Store struct {
	dir       string
	thumbSize int
	images    []*GeneratedImage
}

// NewStore 创建画廊，输出目录不存在时自动创建
func NewStore(dir string, thumbSize int) (*Store, error) {
	if dir == "" {
		dir = "outputs"
	}
	if thumbSize <= 0 {
		thumbSize = ThumbnailSize
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	return &Store{
		dir:       dir,
		thumbSize: thumbSize,
	}, nil
}

// Dir 输出目录
func (s *Store) Dir() string { return s.dir }

// Len 画廊中的图片数量
func (s *Store) Len() int { return len(s.images) }

// PathFor 全局索引对应的文件路径
func (s *Store) PathFor(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("image_%d.png", index))
}

// Append 依次持久化图片并追加到画廊，索引从当前长度开始连续分配。
// 某张图片写入失败时停止，之前的图片保留在画廊中。
func (s *Store) Append(images []image.Image) ([]*GeneratedImage, error) {
	added := make([]*GeneratedImage, 0, len(images))
	for _, img := range images {
		index := len(s.images)
		if img == nil {
			return added, fmt.Errorf("图片 %d: %w", index, ErrNilImage)
		}
		path := s.PathFor(index)
		if err := WritePNG(path, img); err != nil {
			return added, fmt.Errorf("保存图片 %d 失败: %w", index, err)
		}

		entry := &GeneratedImage{
			Index:     index,
			Full:      img,
			Path:      path,
			Thumbnail: Thumbnail(img, s.thumbSize),
		}
		s.images = append(s.images, entry)
		added = append(added, entry)
	}
	return added, nil
}

// Get 按索引读取
func (s *Store) Get(index int) (*GeneratedImage, error) {
	if index < 0 || index >= len(s.images) {
		return nil, ErrOutOfRange
	}
	return s.images[index], nil
}

// Select 从磁盘重新解码索引对应的全尺寸图片；索引无效或解码失败时返回 false
func (s *Store) Select(index int) (image.Image, bool) {
	entry, err := s.Get(index)
	if err != nil {
		return nil, false
	}
	img, err := DecodeFile(entry.Path)
	if err != nil {
		return nil, false
	}
	return img, true
}

// SaveBatch 把一批图片按批内索引保存为 dir/image_<i>.png，返回写入的路径
func SaveBatch(dir string, images []image.Image) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建保存目录失败: %w", err)
	}

	paths := make([]string, 0, len(images))
	for i, img := range images {
		if img == nil {
			return paths, fmt.Errorf("图片 %d: %w", i, ErrNilImage)
		}
		path := filepath.Join(dir, fmt.Sprintf("image_%d.png", i))
		if err := WritePNG(path, img); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
