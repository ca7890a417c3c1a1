package studio

import (
	"image"

	"github.com/Zacy-Sokach/PolyCanvas/internal/gallery"
)

// 事件类型常量
const (
	EventTypeModelReady      = "model.ready"
	EventTypeGalleryExtended = "gallery.extended"
	EventTypePreviewChanged  = "preview.changed"
	EventTypeBatchSaved      = "batch.saved"
	EventTypeStatus          = "status"
)

// ModelReadyEvent 模型初始化成功
type ModelReadyEvent struct {
	*BaseEvent
	Device string
}

func NewModelReadyEvent(device string) *ModelReadyEvent {
	return &ModelReadyEvent{
		BaseEvent: NewBaseEvent(EventTypeModelReady),
		Device:    device,
	}
}

// GalleryExtendedEvent 画廊新增图片，只包含本次新增的部分
type GalleryExtendedEvent struct {
	*BaseEvent
	Images []*gallery.GeneratedImage
}

func NewGalleryExtendedEvent(images []*gallery.GeneratedImage) *GalleryExtendedEvent {
	return &GalleryExtendedEvent{
		BaseEvent: NewBaseEvent(EventTypeGalleryExtended),
		Images:    images,
	}
}

// PreviewChangedEvent 大图预览切换
type PreviewChangedEvent struct {
	*BaseEvent
	Index int
	Image image.Image
}

func NewPreviewChangedEvent(index int, img image.Image) *PreviewChangedEvent {
	return &PreviewChangedEvent{
		BaseEvent: NewBaseEvent(EventTypePreviewChanged),
		Index:     index,
		Image:     img,
	}
}

// BatchSavedEvent 最近一批已另存
type BatchSavedEvent struct {
	*BaseEvent
	Dir   string
	Paths []string
}

func NewBatchSavedEvent(dir string, paths []string) *BatchSavedEvent {
	return &BatchSavedEvent{
		BaseEvent: NewBaseEvent(EventTypeBatchSaved),
		Dir:       dir,
		Paths:     paths,
	}
}

// StatusLevel 状态栏消息级别
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusError
)

// StatusEvent 状态栏消息
type StatusEvent struct {
	*BaseEvent
	Level   StatusLevel
	Message string
}

func NewStatusEvent(level StatusLevel, message string) *StatusEvent {
	return &StatusEvent{
		BaseEvent: NewBaseEvent(EventTypeStatus),
		Level:     level,
		Message:   message,
	}
}
