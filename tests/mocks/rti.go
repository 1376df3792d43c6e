package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-federate/pkg/interfaces"
	"github.com/dep2p/go-federate/pkg/types"
)

// UpdateCall UpdateAttributeValues 调用记录
type UpdateCall struct {
	Object types.ObjectInstanceHandle
	Values types.AttributeValueMap
	Tag    []byte
}

// InteractionCall SendInteraction 调用记录
type InteractionCall struct {
	Class  types.InteractionClassHandle
	Params types.ParameterValueMap
	Tag    []byte
}

// MockRTI 模拟 RTIAmbassador 接口实现
type MockRTI struct {
	mu sync.Mutex

	callbacks interfaces.FederateAmbassador
	connected bool
	wg        sync.WaitGroup

	// 句柄表：名字 → 句柄，从 1 开始按首次出现分配
	handles    map[string]uint64
	names      map[uint64]string
	nextHandle uint64
	nextObject types.ObjectInstanceHandle

	// 行为配置
	SyncCallbacks    bool
	GALT             types.LogicalTime
	GALTValid        bool
	FederationExists bool
	FailReservations map[string]bool
	UnknownNames     map[string]bool

	// 可覆盖的方法
	ConnectFunc                      func(ctx context.Context, host string, port int) error
	PublishObjectClassAttributesFunc func(class types.ObjectClassHandle, attrs types.AttributeHandleSet) error
	UpdateAttributeValuesFunc        func(obj types.ObjectInstanceHandle, values types.AttributeValueMap, tag []byte) error
	TimeAdvanceRequestFunc           func(t types.LogicalTime) error
	ResignFunc                       func(action types.ResignAction) error
	ReserveObjectInstanceNameFunc    func(name string) error

	// 调用记录
	ConnectCalls         int
	JoinCalls            int
	ResignCalls          int
	DisconnectCalls      int
	PublishObjectCalls   map[types.ObjectClassHandle]int
	SubscribeObjectCalls map[types.ObjectClassHandle]int
	PublishedAttributes  map[types.ObjectClassHandle]types.AttributeHandleSet
	SubscribedAttributes map[types.ObjectClassHandle]types.AttributeHandleSet
	PublishInteraction   map[types.InteractionClassHandle]int
	SubscribeInteraction map[types.InteractionClassHandle]int
	Reservations         []string
	Registered           map[string]types.ObjectInstanceHandle
	Updates              []UpdateCall
	Deleted              []types.ObjectInstanceHandle
	RequestedUpdates     []types.ObjectInstanceHandle
	Interactions         []InteractionCall
	ConstrainedCalls     int
	RegulationCalls      []types.LogicalTimeInterval
	TimeAdvanceRequests  []types.LogicalTime
	HandleLookups        int
}

var _ interfaces.RTIAmbassador = (*MockRTI)(nil)

// NewMockRTI 创建带有默认值的 MockRTI
func NewMockRTI() *MockRTI {
	return &MockRTI{
		handles:              make(map[string]uint64),
		names:                make(map[uint64]string),
		nextObject:           1000,
		FailReservations:     make(map[string]bool),
		UnknownNames:         make(map[string]bool),
		PublishObjectCalls:   make(map[types.ObjectClassHandle]int),
		SubscribeObjectCalls: make(map[types.ObjectClassHandle]int),
		PublishedAttributes:  make(map[types.ObjectClassHandle]types.AttributeHandleSet),
		SubscribedAttributes: make(map[types.ObjectClassHandle]types.AttributeHandleSet),
		PublishInteraction:   make(map[types.InteractionClassHandle]int),
		SubscribeInteraction: make(map[types.InteractionClassHandle]int),
		Registered:           make(map[string]types.ObjectInstanceHandle),
	}
}

// ============================================================================
//                              测试辅助
// ============================================================================

// Deliver 把回调投递给已连接的回调接收者（遵循 SyncCallbacks）
func (m *MockRTI) Deliver(fn func(cb interfaces.FederateAmbassador)) {
	m.mu.Lock()
	cb := m.callbacks
	syncMode := m.SyncCallbacks
	m.mu.Unlock()
	if cb == nil {
		return
	}
	if syncMode {
		fn(cb)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(cb)
	}()
}

// Drain 等待所有异步回调完成
func (m *MockRTI) Drain() {
	m.wg.Wait()
}

// Callbacks 返回已注册的回调接收者
func (m *MockRTI) Callbacks() interfaces.FederateAmbassador {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callbacks
}

func (m *MockRTI) handleOf(key string) uint64 {
	m.HandleLookups++
	if h, ok := m.handles[key]; ok {
		return h
	}
	m.nextHandle++
	m.handles[key] = m.nextHandle
	m.names[m.nextHandle] = key
	return m.nextHandle
}

// ObjectClassHandleOf 返回（必要时分配）对象类句柄
func (m *MockRTI) ObjectClassHandleOf(name string) types.ObjectClassHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.ObjectClassHandle(m.handleOf("oc:" + name))
}

// AttributeHandleOf 返回（必要时分配）属性句柄
func (m *MockRTI) AttributeHandleOf(class, attr string) types.AttributeHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.AttributeHandle(m.handleOf("attr:" + class + "." + attr))
}

// InteractionClassHandleOf 返回（必要时分配）交互类句柄
func (m *MockRTI) InteractionClassHandleOf(name string) types.InteractionClassHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.InteractionClassHandle(m.handleOf("ic:" + name))
}

// ParameterHandleOf 返回（必要时分配）参数句柄
func (m *MockRTI) ParameterHandleOf(class, param string) types.ParameterHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.ParameterHandle(m.handleOf("param:" + class + "." + param))
}

// UpdateCount 返回 UpdateAttributeValues 调用次数
func (m *MockRTI) UpdateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Updates)
}

// LastUpdate 返回最后一次 UpdateAttributeValues 调用
func (m *MockRTI) LastUpdate() (UpdateCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Updates) == 0 {
		return UpdateCall{}, false
	}
	return m.Updates[len(m.Updates)-1], true
}

// AdvanceRequests 返回时间推进请求副本
func (m *MockRTI) AdvanceRequests() []types.LogicalTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.LogicalTime, len(m.TimeAdvanceRequests))
	copy(out, m.TimeAdvanceRequests)
	return out
}

// ============================================================================
//                              联邦管理
// ============================================================================

// Connect 连接 RTI
func (m *MockRTI) Connect(ctx context.Context, callbacks interfaces.FederateAmbassador, host string, port int) error {
	m.mu.Lock()
	m.ConnectCalls++
	fn := m.ConnectFunc
	m.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, host, port); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.callbacks = callbacks
	m.connected = true
	m.mu.Unlock()
	return nil
}

// Disconnect 断开连接
func (m *MockRTI) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DisconnectCalls++
	m.connected = false
	return nil
}

// CreateFederationExecution 创建联邦执行
func (m *MockRTI) CreateFederationExecution(_ string, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FederationExists {
		return types.ErrFederationExists
	}
	m.FederationExists = true
	return nil
}

// JoinFederationExecution 加入联邦执行
func (m *MockRTI) JoinFederationExecution(_, _, _ string) (types.FederateHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JoinCalls++
	return types.FederateHandle(m.JoinCalls), nil
}

// ResignFederationExecution 退出联邦执行
func (m *MockRTI) ResignFederationExecution(action types.ResignAction) error {
	m.mu.Lock()
	m.ResignCalls++
	fn := m.ResignFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(action)
	}
	return nil
}

// ============================================================================
//                              句柄解析
// ============================================================================

func (m *MockRTI) lookup(kind, name string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0, types.ErrNotConnected
	}
	if m.UnknownNames[name] {
		return 0, types.ErrUnknownClass
	}
	return m.handleOf(kind + name), nil
}

// GetObjectClassHandle 解析对象类句柄
func (m *MockRTI) GetObjectClassHandle(name string) (types.ObjectClassHandle, error) {
	h, err := m.lookup("oc:", name)
	return types.ObjectClassHandle(h), err
}

// GetAttributeHandle 解析属性句柄
func (m *MockRTI) GetAttributeHandle(class types.ObjectClassHandle, name string) (types.AttributeHandle, error) {
	m.mu.Lock()
	className := m.names[uint64(class)]
	m.mu.Unlock()
	h, err := m.lookup("attr:"+trimKind(className)+".", name)
	return types.AttributeHandle(h), err
}

// GetInteractionClassHandle 解析交互类句柄
func (m *MockRTI) GetInteractionClassHandle(name string) (types.InteractionClassHandle, error) {
	h, err := m.lookup("ic:", name)
	return types.InteractionClassHandle(h), err
}

// GetParameterHandle 解析参数句柄
func (m *MockRTI) GetParameterHandle(class types.InteractionClassHandle, name string) (types.ParameterHandle, error) {
	m.mu.Lock()
	className := m.names[uint64(class)]
	m.mu.Unlock()
	h, err := m.lookup("param:"+trimKind(className)+".", name)
	return types.ParameterHandle(h), err
}

func trimKind(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[i+1:]
		}
	}
	return key
}

// ============================================================================
//                              声明管理
// ============================================================================

// PublishObjectClassAttributes 发布对象类属性
func (m *MockRTI) PublishObjectClassAttributes(class types.ObjectClassHandle, attrs types.AttributeHandleSet) error {
	m.mu.Lock()
	fn := m.PublishObjectClassAttributesFunc
	m.mu.Unlock()
	if fn != nil {
		if err := fn(class, attrs); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishObjectCalls[class]++
	m.PublishedAttributes[class] = attrs
	return nil
}

// SubscribeObjectClassAttributes 订阅对象类属性
func (m *MockRTI) SubscribeObjectClassAttributes(class types.ObjectClassHandle, attrs types.AttributeHandleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubscribeObjectCalls[class]++
	m.SubscribedAttributes[class] = attrs
	return nil
}

// PublishInteractionClass 发布交互类
func (m *MockRTI) PublishInteractionClass(class types.InteractionClassHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishInteraction[class]++
	return nil
}

// SubscribeInteractionClass 订阅交互类
func (m *MockRTI) SubscribeInteractionClass(class types.InteractionClassHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubscribeInteraction[class]++
	return nil
}

// ============================================================================
//                              对象管理
// ============================================================================

// ReserveObjectInstanceName 预留实例名，结果异步回调
func (m *MockRTI) ReserveObjectInstanceName(name string) error {
	m.mu.Lock()
	m.Reservations = append(m.Reservations, name)
	fail := m.FailReservations[name]
	fn := m.ReserveObjectInstanceNameFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(name)
	}

	m.Deliver(func(cb interfaces.FederateAmbassador) {
		if fail {
			cb.ObjectInstanceNameReservationFailed(name)
			return
		}
		cb.ObjectInstanceNameReservationSucceeded(name)
	})
	return nil
}

// RegisterObjectInstance 注册对象实例
func (m *MockRTI) RegisterObjectInstance(_ types.ObjectClassHandle, name string) (types.ObjectInstanceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.Registered[name]; dup {
		return 0, types.ErrDuplicateInstance
	}
	m.nextObject++
	m.Registered[name] = m.nextObject
	return m.nextObject, nil
}

// UpdateAttributeValues 更新属性值
func (m *MockRTI) UpdateAttributeValues(obj types.ObjectInstanceHandle, values types.AttributeValueMap, tag []byte) error {
	m.mu.Lock()
	fn := m.UpdateAttributeValuesFunc
	m.mu.Unlock()
	if fn != nil {
		if err := fn(obj, values, tag); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, UpdateCall{Object: obj, Values: values, Tag: tag})
	return nil
}

// DeleteObjectInstance 删除对象实例
func (m *MockRTI) DeleteObjectInstance(obj types.ObjectInstanceHandle, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, obj)
	return nil
}

// RequestAttributeValueUpdate 请求属性值更新
func (m *MockRTI) RequestAttributeValueUpdate(obj types.ObjectInstanceHandle, _ types.AttributeHandleSet, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestedUpdates = append(m.RequestedUpdates, obj)
	return nil
}

// SendInteraction 发送交互
func (m *MockRTI) SendInteraction(class types.InteractionClassHandle, params types.ParameterValueMap, tag []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Interactions = append(m.Interactions, InteractionCall{Class: class, Params: params, Tag: tag})
	return nil
}

// ============================================================================
//                              时间管理
// ============================================================================

// EnableTimeConstrained 启用时间受限，回调 TimeConstrainedEnabled
func (m *MockRTI) EnableTimeConstrained() error {
	m.mu.Lock()
	m.ConstrainedCalls++
	m.mu.Unlock()
	m.Deliver(func(cb interfaces.FederateAmbassador) { cb.TimeConstrainedEnabled(0) })
	return nil
}

// EnableTimeRegulation 启用时间调节，回调 TimeRegulationEnabled
func (m *MockRTI) EnableTimeRegulation(lookahead types.LogicalTimeInterval) error {
	m.mu.Lock()
	m.RegulationCalls = append(m.RegulationCalls, lookahead)
	m.mu.Unlock()
	m.Deliver(func(cb interfaces.FederateAmbassador) { cb.TimeRegulationEnabled(0) })
	return nil
}

// QueryGALT 返回配置的 GALT
func (m *MockRTI) QueryGALT() (types.LogicalTime, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GALT, m.GALTValid, nil
}

// TimeAdvanceRequest 时间推进请求，回调 TimeAdvanceGrant
func (m *MockRTI) TimeAdvanceRequest(t types.LogicalTime) error {
	m.mu.Lock()
	fn := m.TimeAdvanceRequestFunc
	m.mu.Unlock()
	if fn != nil {
		if err := fn(t); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.TimeAdvanceRequests = append(m.TimeAdvanceRequests, t)
	m.mu.Unlock()
	m.Deliver(func(cb interfaces.FederateAmbassador) { cb.TimeAdvanceGrant(t) })
	return nil
}
