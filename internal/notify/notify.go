package notify

import "sync"

// Notifier 让非实时路径的代码（REST handler、service 层）把事件推进
// 房间广播，而不需要持有任何具体连接的引用。
type Notifier interface {
	Publish(chatID uint, event string, payload any)
}

// Bus 是注入给 service 层的通知句柄。网关就绪前 Publish 是静默空操作，
// 网关构造完成后通过 Attach 挂上真正的实现。
type Bus struct {
	mu     sync.RWMutex
	target Notifier
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Attach(n Notifier) {
	b.mu.Lock()
	b.target = n
	b.mu.Unlock()
}

func (b *Bus) Publish(chatID uint, event string, payload any) {
	b.mu.RLock()
	t := b.target
	b.mu.RUnlock()
	if t == nil {
		return
	}
	t.Publish(chatID, event, payload)
}
