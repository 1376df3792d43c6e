package execution

import (
	"fmt"
	"sync/atomic"

	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/lib/ecs"
	"github.com/dep2p/go-federate/pkg/lib/log"
	"github.com/dep2p/go-federate/pkg/types"
)

var logger = log.Logger("core/execution")

// Sender 发送交互的能力（由实例管理器提供）
type Sender interface {
	SendWith(className string, fill func(w interfaces.World, id types.EntityID) error, tag []byte) error
}

// Tracker 跟踪已发现的执行配置对象
//
// 实现 timing.Authority：只有在执行配置收到首次完整更新后才能读取 LCTS。
// 读取会获取 World 锁，不得在 World 系统内部调用。
type Tracker struct {
	fc     *fedctx.Context
	entity atomic.Uint64
}

// NewTracker 创建跟踪器
func NewTracker(fc *fedctx.Context) *Tracker {
	return &Tracker{fc: fc}
}

// Bind 绑定执行配置实体
func (t *Tracker) Bind(id types.EntityID) {
	t.entity.Store(uint64(id))
	logger.Debug("执行配置已绑定", "entity", id)
}

// Entity 返回绑定的实体
func (t *Tracker) Entity() types.EntityID {
	return types.EntityID(t.entity.Load())
}

// Snapshot 在 World 锁下复制当前执行配置
func (t *Tracker) Snapshot() (Configuration, bool) {
	id := t.Entity()
	if id == types.NoEntity {
		return Configuration{}, false
	}
	var (
		out Configuration
		ok  bool
	)
	_ = t.fc.WithWorld(func(w interfaces.World) error {
		var c *Configuration
		if c, ok = ecs.Get[Configuration](w, id); ok {
			out = *c
		}
		return nil
	})
	return out, ok
}

// Ready 执行配置是否已收到首次完整更新
func (t *Tracker) Ready() bool {
	c, ok := t.Snapshot()
	return ok && c.Complete()
}

// LeastCommonTimeStep 最小公共时间步长（微秒）
func (t *Tracker) LeastCommonTimeStep() types.LogicalTimeInterval {
	c, _ := t.Snapshot()
	return types.LogicalTimeInterval(c.LeastCommonTimeStep)
}

// CurrentMode 当前执行模式；未就绪时为 ModeUninitialized
func (t *Tracker) CurrentMode() Mode {
	c, ok := t.Snapshot()
	if !ok || !c.Complete() {
		return ModeUninitialized
	}
	return c.CurrentMode
}

// ShuttingDown 联邦是否已进入或即将进入关闭模式
func (t *Tracker) ShuttingDown() bool {
	c, ok := t.Snapshot()
	if !ok || !c.Complete() {
		return false
	}
	return c.CurrentMode == ModeShutdown || c.NextMode == ModeShutdown
}

// RequestModeTransition 发送模式切换请求
func RequestModeTransition(s Sender, className string, mode Mode) error {
	if !mode.Valid() || mode == ModeUninitialized || mode == ModeInitializing {
		return fmt.Errorf("%w: cannot request transition to %s", types.ErrMalformedValue, mode)
	}
	err := s.SendWith(className, func(w interfaces.World, id types.EntityID) error {
		r, err := ecs.MustGet[ModeTransitionRequest](w, id)
		if err != nil {
			return err
		}
		r.Mode = mode
		return nil
	}, nil)
	if err != nil {
		return err
	}
	logger.Info("已请求模式切换", "mode", mode.String())
	return nil
}

// DecodeModeTransition 读取已解码的模式切换请求
func DecodeModeTransition(w interfaces.World, id types.EntityID) (Mode, bool) {
	r, ok := ecs.Get[ModeTransitionRequest](w, id)
	if !ok {
		return 0, false
	}
	return r.Mode, true
}
