package types

// ============================================================================
//                              事件类型
// ============================================================================
//
// 事件通过事件总线发布，订阅方式：
//
//	sub, _ := fed.EventBus().Subscribe(new(types.EvtInstanceDiscovered))

// EvtInstanceDiscovered 发现远端对象实例
type EvtInstanceDiscovered struct {
	Entity EntityID
	Handle ObjectInstanceHandle
	Name   string
	Class  string
}

// EvtInstanceReflected 远端实例属性已应用
type EvtInstanceReflected struct {
	Entity     EntityID
	Handle     ObjectInstanceHandle
	Class      string
	Attributes []string
}

// EvtInstanceRemoved 远端实例已移除
type EvtInstanceRemoved struct {
	Entity EntityID
	Handle ObjectInstanceHandle
	Name   string
	Class  string
}

// EvtInteractionReceived 收到交互
//
// Parameters 为收到的原始参数值，观察者可自行解码。
// 只有开启 retain_interactions 时 Entity 才有效（参数已解码到其组件中，
// 由观察者负责销毁）；否则实体在处理函数返回后已销毁，Entity 为 NoEntity。
type EvtInteractionReceived struct {
	Entity     EntityID
	Class      string
	Parameters ParameterValueMap
	Tag        []byte
}

// EvtShutdownRequested 检测到联邦关闭信号
type EvtShutdownRequested struct {
	Reason string
}

// EvtPhaseChanged 联邦成员生命周期阶段变更
type EvtPhaseChanged struct {
	From string
	To   string
}
