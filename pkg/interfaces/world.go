package interfaces

import (
	"context"
	"reflect"

	"github.com/dep2p/go-federate/pkg/types"
)

// World 定义实体组件引擎接口
//
// 组件以指针形式存储（例如 *Position），按动态类型索引；
// 转换器通过指针原地修改组件。实现必须并发安全。
type World interface {
	// CreateEntity 创建实体并附加组件
	CreateEntity(components ...any) types.EntityID

	// DestroyEntity 销毁实体，实体不存在返回 false
	DestroyEntity(id types.EntityID) bool

	// Alive 实体是否存在
	Alive(id types.EntityID) bool

	// AddComponent 附加或替换组件
	AddComponent(id types.EntityID, component any) error

	// Component 按类型获取组件
	Component(id types.EntityID, typ reflect.Type) (any, bool)

	// RemoveComponent 移除组件
	RemoveComponent(id types.EntityID, typ reflect.Type) bool

	// Update 执行一个本地仿真步
	Update(ctx context.Context) error
}
