// Package eventbus 实现进程内事件总线
//
// 联邦成员通过总线向应用观察者广播运行时事件：
//   - types.EvtInstanceDiscovered / EvtInstanceReflected / EvtInstanceRemoved
//   - types.EvtInteractionReceived
//   - types.EvtShutdownRequested
//   - types.EvtPhaseChanged
//
// 事件按动态类型路由，发射永不阻塞：订阅者缓冲区满时事件被丢弃并计数。
//
// # 快速开始
//
//	sub, _ := bus.Subscribe(new(types.EvtInstanceDiscovered), eventbus.BufSize(64))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        e := evt.(types.EvtInstanceDiscovered)
//	        // 处理事件
//	    }
//	}()
//
// # 并发安全
//
//   - 订阅/取消订阅：RWMutex 保护
//   - 发射器引用计数：atomic.Int32
//   - 通道关闭：closeOnce 防止重复
package eventbus
