package studio

import (
	"sort"
	"sync"
	"time"
)

// Event 事件接口
type Event interface {
	// Type 事件类型
	Type() string
	// Timestamp 事件时间戳
	Timestamp() time.Time
}

// EventHandler 事件处理器接口
type EventHandler interface {
	// CanHandle 检查是否可以处理该事件
	CanHandle(event Event) bool

	// Handle 处理事件
	Handle(event Event) error

	// Priority 处理优先级，数值越小优先级越高
	Priority() int
}

// EventBus 事件总线接口。Publish 同步执行，只在主循环中调用。
type EventBus interface {
	Subscribe(eventType string, handler EventHandler)
	Unsubscribe(eventType string, handler EventHandler)
	Publish(event Event)
	Clear()
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	eventType string
	timestamp time.Time
}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType string) *BaseEvent {
	return &BaseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Type 事件类型
func (e *BaseEvent) Type() string {
	return e.eventType
}

// Timestamp 事件时间戳
func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

// HandlerFunc 把普通函数包装为 EventHandler
type HandlerFunc struct {
	Fn       func(Event) error
	Order    int
	Accepter func(Event) bool
}

// NewHandlerFunc 创建默认优先级的处理器
func NewHandlerFunc(fn func(Event) error) *HandlerFunc {
	return &HandlerFunc{Fn: fn}
}

func (h *HandlerFunc) CanHandle(event Event) bool {
	if h.Accepter == nil {
		return true
	}
	return h.Accepter(event)
}

func (h *HandlerFunc) Handle(event Event) error {
	return h.Fn(event)
}

func (h *HandlerFunc) Priority() int {
	return h.Order
}

// MemoryEventBus 内存事件总线实现
type MemoryEventBus struct {
	handlers map[string][]EventHandler
	mutex    sync.RWMutex
	// onError 处理器返回错误时调用，可为空
	onError func(Event, error)
}

// NewMemoryEventBus 创建内存事件总线
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{
		handlers: make(map[string][]EventHandler),
	}
}

// OnError 设置处理器错误回调
func (bus *MemoryEventBus) OnError(fn func(Event, error)) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	bus.onError = fn
}

// Subscribe 订阅事件，同优先级按订阅顺序执行
func (bus *MemoryEventBus) Subscribe(eventType string, handler EventHandler) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	handlers := append(bus.handlers[eventType], handler)
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].Priority() < handlers[j].Priority()
	})
	bus.handlers[eventType] = handlers
}

// Unsubscribe 取消订阅事件
func (bus *MemoryEventBus) Unsubscribe(eventType string, handler EventHandler) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	handlers := bus.handlers[eventType]
	for i, h := range handlers {
		if h == handler {
			bus.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
}

// Publish 发布事件
func (bus *MemoryEventBus) Publish(event Event) {
	bus.mutex.RLock()
	handlers := bus.handlers[event.Type()]
	onError := bus.onError
	bus.mutex.RUnlock()

	for _, handler := range handlers {
		if !handler.CanHandle(event) {
			continue
		}
		if err := handler.Handle(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// Clear 清空所有订阅
func (bus *MemoryEventBus) Clear() {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	bus.handlers = make(map[string][]EventHandler)
}
