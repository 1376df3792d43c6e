package interfaces

import (
	"context"

	"github.com/dep2p/go-federate/pkg/types"
)

// RTIAmbassador 定义对联邦运行时基础设施（RTI）的请求接口
//
// 本模块只驱动该接口，不实现 RTI。所有方法都是同步请求；
// 需要异步完成的服务（名字预留、时间服务等）通过 FederateAmbassador 回调通知结果。
type RTIAmbassador interface {
	// ──────────────────────────── 联邦管理 ────────────────────────────

	// Connect 连接 RTI 并注册回调接收者
	Connect(ctx context.Context, callbacks FederateAmbassador, host string, port int) error

	// Disconnect 断开连接
	Disconnect() error

	// CreateFederationExecution 创建联邦执行；已存在时返回 types.ErrFederationExists
	CreateFederationExecution(federation string, fomModules []string) error

	// JoinFederationExecution 加入联邦执行
	JoinFederationExecution(federateName, federateType, federation string) (types.FederateHandle, error)

	// ResignFederationExecution 退出联邦执行
	ResignFederationExecution(action types.ResignAction) error

	// ──────────────────────────── 句柄解析 ────────────────────────────

	GetObjectClassHandle(name string) (types.ObjectClassHandle, error)
	GetAttributeHandle(class types.ObjectClassHandle, name string) (types.AttributeHandle, error)
	GetInteractionClassHandle(name string) (types.InteractionClassHandle, error)
	GetParameterHandle(class types.InteractionClassHandle, name string) (types.ParameterHandle, error)

	// ──────────────────────────── 声明管理 ────────────────────────────

	PublishObjectClassAttributes(class types.ObjectClassHandle, attrs types.AttributeHandleSet) error
	SubscribeObjectClassAttributes(class types.ObjectClassHandle, attrs types.AttributeHandleSet) error
	PublishInteractionClass(class types.InteractionClassHandle) error
	SubscribeInteractionClass(class types.InteractionClassHandle) error

	// ──────────────────────────── 对象管理 ────────────────────────────

	// ReserveObjectInstanceName 预留实例名，结果通过
	// ObjectInstanceNameReservationSucceeded/Failed 回调
	ReserveObjectInstanceName(name string) error

	RegisterObjectInstance(class types.ObjectClassHandle, name string) (types.ObjectInstanceHandle, error)
	UpdateAttributeValues(obj types.ObjectInstanceHandle, values types.AttributeValueMap, tag []byte) error
	DeleteObjectInstance(obj types.ObjectInstanceHandle, tag []byte) error
	RequestAttributeValueUpdate(obj types.ObjectInstanceHandle, attrs types.AttributeHandleSet, tag []byte) error
	SendInteraction(class types.InteractionClassHandle, params types.ParameterValueMap, tag []byte) error

	// ──────────────────────────── 时间管理 ────────────────────────────

	// EnableTimeConstrained 结果通过 TimeConstrainedEnabled 回调
	EnableTimeConstrained() error

	// EnableTimeRegulation 结果通过 TimeRegulationEnabled 回调
	EnableTimeRegulation(lookahead types.LogicalTimeInterval) error

	// QueryGALT 查询最大可用逻辑时间；valid 为 false 表示联邦中没有时间调节成员
	QueryGALT() (galt types.LogicalTime, valid bool, err error)

	// TimeAdvanceRequest 结果通过 TimeAdvanceGrant 回调
	TimeAdvanceRequest(t types.LogicalTime) error
}

// FederateAmbassador 定义 RTI 回调接口
//
// 所有方法在 RTI 的回调线程上调用，实现不得阻塞，也不得把错误抛回 RTI。
type FederateAmbassador interface {
	DiscoverObjectInstance(obj types.ObjectInstanceHandle, class types.ObjectClassHandle, name string)
	ReflectAttributeValues(obj types.ObjectInstanceHandle, values types.AttributeValueMap, tag []byte)
	RemoveObjectInstance(obj types.ObjectInstanceHandle, tag []byte)
	ReceiveInteraction(class types.InteractionClassHandle, params types.ParameterValueMap, tag []byte)
	ProvideAttributeValueUpdate(obj types.ObjectInstanceHandle, attrs types.AttributeHandleSet, tag []byte)

	ObjectInstanceNameReservationSucceeded(name string)
	ObjectInstanceNameReservationFailed(name string)

	TimeConstrainedEnabled(t types.LogicalTime)
	TimeRegulationEnabled(t types.LogicalTime)
	TimeAdvanceGrant(t types.LogicalTime)
}
