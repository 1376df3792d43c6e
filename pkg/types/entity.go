package types

import "fmt"

// EntityID 实体引擎中的不透明实体句柄
type EntityID uint64

// NoEntity 无效实体
const NoEntity EntityID = 0

// String 返回实体字符串表示
func (e EntityID) String() string {
	return fmt.Sprintf("entity#%d", uint64(e))
}

// Origin 实体归属
type Origin int

const (
	// OriginLocal 本成员拥有并注册的实例
	OriginLocal Origin = iota + 1
	// OriginRemote 发现的、由其他成员拥有的实例
	OriginRemote
)

// String 返回归属字符串表示
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	default:
		return "unknown"
	}
}
