package types

import (
	"fmt"
	"sort"
)

// ============================================================================
//                              RTI 句柄
// ============================================================================

// ObjectClassHandle 对象类句柄
type ObjectClassHandle uint64

// AttributeHandle 属性句柄
type AttributeHandle uint64

// InteractionClassHandle 交互类句柄
type InteractionClassHandle uint64

// ParameterHandle 参数句柄
type ParameterHandle uint64

// ObjectInstanceHandle 对象实例句柄
type ObjectInstanceHandle uint64

// FederateHandle 联邦成员句柄
type FederateHandle uint64

// String 返回句柄字符串表示
func (h ObjectInstanceHandle) String() string {
	return fmt.Sprintf("obj#%d", uint64(h))
}

// ============================================================================
//                              值映射
// ============================================================================

// AttributeHandleSet 属性句柄集合
type AttributeHandleSet map[AttributeHandle]struct{}

// NewAttributeHandleSet 由句柄列表创建集合
func NewAttributeHandleSet(handles ...AttributeHandle) AttributeHandleSet {
	s := make(AttributeHandleSet, len(handles))
	for _, h := range handles {
		s[h] = struct{}{}
	}
	return s
}

// Contains 判断集合是否包含句柄
func (s AttributeHandleSet) Contains(h AttributeHandle) bool {
	_, ok := s[h]
	return ok
}

// Sorted 返回按句柄值排序的列表
func (s AttributeHandleSet) Sorted() []AttributeHandle {
	out := make([]AttributeHandle, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AttributeValueMap 属性句柄 → 编码后的值
type AttributeValueMap map[AttributeHandle][]byte

// ParameterValueMap 参数句柄 → 编码后的值
type ParameterValueMap map[ParameterHandle][]byte

// ResignAction 退出联邦时对所属实例的处理方式
type ResignAction int

const (
	// ResignNoAction 不处理
	ResignNoAction ResignAction = iota
	// ResignDeleteObjects 删除本成员注册的对象实例
	ResignDeleteObjects
	// ResignCancelThenDeleteThenDivest 取消挂起的所有权操作后删除并放弃
	ResignCancelThenDeleteThenDivest
)
