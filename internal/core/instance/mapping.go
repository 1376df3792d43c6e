// Package instance 管理对象实例映射与本地实例操作
//
// Mapping 以单一结构同时维护 实体 ↔ 实例句柄 ↔ 实例名 三向索引，
// 所有写操作原子完成，任何时刻三个索引一致。
package instance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dep2p/go-federate/internal/core/metrics"
	"github.com/dep2p/go-federate/pkg/types"
)

// Entry 映射条目
type Entry struct {
	Entity types.EntityID
	Handle types.ObjectInstanceHandle
	Name   string
	Class  string
	Origin types.Origin
}

// Mapping 实体/句柄/名字三向映射
type Mapping struct {
	mu       sync.RWMutex
	byEntity map[types.EntityID]*Entry
	byHandle map[types.ObjectInstanceHandle]*Entry
	byName   map[string]*Entry

	metrics *metrics.Metrics
}

// NewMapping 创建映射
func NewMapping(m *metrics.Metrics) *Mapping {
	return &Mapping{
		byEntity: make(map[types.EntityID]*Entry),
		byHandle: make(map[types.ObjectInstanceHandle]*Entry),
		byName:   make(map[string]*Entry),
		metrics:  m,
	}
}

// Put 原子地插入条目；实体、句柄或名字任一已存在时返回 types.ErrDuplicateInstance
func (m *Mapping) Put(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHandle[e.Handle]; ok {
		return fmt.Errorf("%w: handle %s", types.ErrDuplicateInstance, e.Handle)
	}
	if _, ok := m.byName[e.Name]; ok {
		return fmt.Errorf("%w: name %q", types.ErrDuplicateInstance, e.Name)
	}
	if _, ok := m.byEntity[e.Entity]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateInstance, e.Entity)
	}

	entry := e
	m.byEntity[e.Entity] = &entry
	m.byHandle[e.Handle] = &entry
	m.byName[e.Name] = &entry
	m.metrics.InstanceAdded(e.Origin)
	return nil
}

// Remove 按句柄移除条目；条目只会被移除一次
func (m *Mapping) Remove(h types.ObjectInstanceHandle) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byHandle[h]
	if !ok {
		return Entry{}, false
	}
	m.removeLocked(e)
	return *e, true
}

// RemoveEntity 按实体移除条目
func (m *Mapping) RemoveEntity(id types.EntityID) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byEntity[id]
	if !ok {
		return Entry{}, false
	}
	m.removeLocked(e)
	return *e, true
}

func (m *Mapping) removeLocked(e *Entry) {
	delete(m.byEntity, e.Entity)
	delete(m.byHandle, e.Handle)
	delete(m.byName, e.Name)
	m.metrics.InstanceRemoved(e.Origin)
}

// ByHandle 按实例句柄查找
func (m *Mapping) ByHandle(h types.ObjectInstanceHandle) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.byHandle[h]; ok {
		return *e, true
	}
	return Entry{}, false
}

// ByEntity 按实体查找
func (m *Mapping) ByEntity(id types.EntityID) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.byEntity[id]; ok {
		return *e, true
	}
	return Entry{}, false
}

// ByName 按实例名查找
func (m *Mapping) ByName(name string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.byName[name]; ok {
		return *e, true
	}
	return Entry{}, false
}

// Len 返回条目数
func (m *Mapping) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byHandle)
}

// Entries 返回指定归属的条目（按名字排序）；origin 为 0 时返回全部
func (m *Mapping) Entries(origin types.Origin) []Entry {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.byHandle))
	for _, e := range m.byHandle {
		if origin == 0 || e.Origin == origin {
			out = append(out, *e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
