// Package ecs 提供实体组件引擎的类型化访问工具和一个内存参考实现
//
// 组件一律以指针存储。Get/Set 以组件的值类型为类型参数：
//
//	pos, ok := ecs.Get[Position](w, id) // *Position
package ecs

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

// TypeOf 返回组件 T 在 World 中的索引类型（*T）
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil))
}

// Get 获取实体的 T 组件
func Get[T any](w interfaces.World, id types.EntityID) (*T, bool) {
	c, ok := w.Component(id, TypeOf[T]())
	if !ok {
		return nil, false
	}
	v, ok := c.(*T)
	return v, ok
}

// MustGet 获取组件，缺失时返回 types.ErrMissingComponent
func MustGet[T any](w interfaces.World, id types.EntityID) (*T, error) {
	v, ok := Get[T](w, id)
	if !ok {
		var zero T
		return nil, fmt.Errorf("%w: %T on %s", types.ErrMissingComponent, zero, id)
	}
	return v, nil
}

// Has 实体是否拥有 T 组件
func Has[T any](w interfaces.World, id types.EntityID) bool {
	_, ok := w.Component(id, TypeOf[T]())
	return ok
}

// ============================================================================
//                              MemoryWorld
// ============================================================================

// System 每个仿真步执行一次的系统函数
type System func(ctx context.Context, w *MemoryWorld) error

// MemoryWorld 并发安全的内存实体组件引擎
//
// 只提供运行时需要的最小能力，适合测试和小型仿真。
type MemoryWorld struct {
	mu       sync.RWMutex
	next     types.EntityID
	entities map[types.EntityID]map[reflect.Type]any
	systems  []System
	steps    uint64
}

var _ interfaces.World = (*MemoryWorld)(nil)

// NewMemoryWorld 创建内存 World
func NewMemoryWorld(systems ...System) *MemoryWorld {
	return &MemoryWorld{
		entities: make(map[types.EntityID]map[reflect.Type]any),
		systems:  systems,
	}
}

// CreateEntity 创建实体
func (w *MemoryWorld) CreateEntity(components ...any) types.EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.next++
	id := w.next
	comps := make(map[reflect.Type]any, len(components))
	for _, c := range components {
		if c != nil {
			comps[reflect.TypeOf(c)] = c
		}
	}
	w.entities[id] = comps
	return id
}

// DestroyEntity 销毁实体
func (w *MemoryWorld) DestroyEntity(id types.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.entities[id]; !ok {
		return false
	}
	delete(w.entities, id)
	return true
}

// Alive 实体是否存在
func (w *MemoryWorld) Alive(id types.EntityID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entities[id]
	return ok
}

// AddComponent 附加或替换组件
func (w *MemoryWorld) AddComponent(id types.EntityID, component any) error {
	if component == nil {
		return fmt.Errorf("nil component for %s", id)
	}
	if reflect.TypeOf(component).Kind() != reflect.Ptr {
		return fmt.Errorf("component %T must be a pointer", component)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	comps, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownInstance, id)
	}
	comps[reflect.TypeOf(component)] = component
	return nil
}

// Component 按类型获取组件
func (w *MemoryWorld) Component(id types.EntityID, typ reflect.Type) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	comps, ok := w.entities[id]
	if !ok {
		return nil, false
	}
	c, ok := comps[typ]
	return c, ok
}

// RemoveComponent 移除组件
func (w *MemoryWorld) RemoveComponent(id types.EntityID, typ reflect.Type) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	comps, ok := w.entities[id]
	if !ok {
		return false
	}
	if _, ok := comps[typ]; !ok {
		return false
	}
	delete(comps, typ)
	return true
}

// Len 返回实体数量
func (w *MemoryWorld) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// Steps 返回已执行的仿真步数
func (w *MemoryWorld) Steps() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.steps
}

// Update 依次执行所有系统
func (w *MemoryWorld) Update(ctx context.Context) error {
	for _, sys := range w.systems {
		if err := sys(ctx, w); err != nil {
			return err
		}
	}
	w.mu.Lock()
	w.steps++
	w.mu.Unlock()
	return nil
}
