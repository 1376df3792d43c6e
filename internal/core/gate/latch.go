package gate

import (
	"context"
	"sync"

	"github.com/dep2p/go-federate/pkg/types"
)

// Latch 绑定到 Gate 的一次性条件
//
// 用于等待"某件事已经发生"（例如锚对象已发现），而该事件可能早于等待开始。
// Satisfy 与 Await 的判定在同一把锁下完成：条件若在 Arm 前已满足则不等待；
// 若在等待期间满足，则由 Satisfy 恰好释放一次闸门。
type Latch struct {
	mu        sync.Mutex
	gate      *Gate
	name      string
	satisfied bool
	waiting   bool
}

// NewLatch 创建绑定到 g 的条件
func NewLatch(g *Gate, name string) *Latch {
	return &Latch{gate: g, name: name}
}

// Satisfy 标记条件已满足；重复调用无副作用
func (l *Latch) Satisfy() {
	l.mu.Lock()
	if l.satisfied {
		l.mu.Unlock()
		return
	}
	l.satisfied = true
	release := l.waiting
	l.waiting = false
	l.mu.Unlock()

	if release {
		l.gate.Release()
	}
}

// Satisfied 条件是否已满足
func (l *Latch) Satisfied() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.satisfied
}

// Await 阻塞直到条件满足
func (l *Latch) Await(ctx context.Context) error {
	return l.gate.Arm(ctx, l.name, func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.satisfied {
			return types.ErrAlreadySatisfied
		}
		l.waiting = true
		return nil
	})
}
