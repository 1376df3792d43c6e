// Package mocks 提供统一的测试 Mock 实现
//
// # 核心 Mock
//
//   - MockRTI: 模拟 interfaces.RTIAmbassador，按名字分配句柄，记录所有请求，
//     并在默认行为下把异步服务（名字预留、时间服务）的完成回调投递给回调接收者
//
// # 设计原则
//
// 1. 函数式注入: 通过 XxxFunc 字段注入自定义行为
// 2. 调用记录: 记录调用历史，便于验证测试行为
// 3. 回调投递: SyncCallbacks 为 true 时在请求内部同步回调，否则在新的 goroutine 中回调
//
// # 使用示例
//
//	rti := mocks.NewMockRTI()
//	rti.GALT = 2_500_000
//	rti.FailReservations["B1"] = true
//
//	// 注入远端发现
//	rti.Deliver(func(cb interfaces.FederateAmbassador) {
//	    cb.DiscoverObjectInstance(7, rti.ObjectClassHandleOf("Beacon"), "B9")
//	})
package mocks
