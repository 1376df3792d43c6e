// Package types 定义 go-federate 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

// ============================================================================
//                              声明相关错误
// ============================================================================

var (
	// ErrEmptyClassName 空类名
	ErrEmptyClassName = errors.New("empty class name")

	// ErrEmptyFieldName 空属性/参数名
	ErrEmptyFieldName = errors.New("empty attribute or parameter name")

	// ErrDuplicateField 重复的属性/参数
	ErrDuplicateField = errors.New("duplicate attribute or parameter")

	// ErrMissingConverter 共享字段缺少转换器
	ErrMissingConverter = errors.New("shared field has no converter")

	// ErrInvalidSharing 无效的共享意图
	ErrInvalidSharing = errors.New("invalid sharing intent")

	// ErrUnknownClass 未注册的类
	ErrUnknownClass = errors.New("unknown class")

	// ErrUnknownField 未声明的属性/参数
	ErrUnknownField = errors.New("unknown attribute or parameter")

	// ErrClassExists 类已注册
	ErrClassExists = errors.New("class already registered")

	// ErrUnknownConverter 未注册的转换器
	ErrUnknownConverter = errors.New("unknown converter")

	// ErrUnknownArchetype 未注册的原型
	ErrUnknownArchetype = errors.New("unknown archetype")

	// ErrConverterKind 转换器类型与绑定不符（single/multi）
	ErrConverterKind = errors.New("converter kind mismatch")

	// ErrNotPublished 类未发布
	ErrNotPublished = errors.New("class not published")

	// ErrNothingToDeclare 类没有符合声明意图的属性
	ErrNothingToDeclare = errors.New("no attributes match the declaration intent")
)

// ============================================================================
//                              连接相关错误
// ============================================================================

var (
	// ErrNotConnected 尚未连接 RTI
	ErrNotConnected = errors.New("not connected to RTI")

	// ErrFederationExists 联邦执行已存在（创建时可忽略）
	ErrFederationExists = errors.New("federation execution already exists")

	// ErrAlreadyStarted 已经启动
	ErrAlreadyStarted = errors.New("federate already started")

	// ErrNotStarted 尚未启动
	ErrNotStarted = errors.New("federate not started")

	// ErrClosed 已关闭
	ErrClosed = errors.New("federate closed")
)

// ============================================================================
//                              同步相关错误
// ============================================================================

var (
	// ErrGateArmed 闸门已处于等待状态
	ErrGateArmed = errors.New("rendezvous gate already armed")

	// ErrGateInterrupted 等待被中断
	ErrGateInterrupted = errors.New("rendezvous wait interrupted")

	// ErrGateStalled 等待超时（联邦伙伴无响应）
	ErrGateStalled = errors.New("rendezvous wait stalled")

	// ErrGateBroken 闸门在中断后不可再用
	ErrGateBroken = errors.New("rendezvous gate broken")

	// ErrAlreadySatisfied 等待条件在进入等待前已满足
	ErrAlreadySatisfied = errors.New("condition already satisfied")

	// ErrReservationFailed 实例名预留失败
	ErrReservationFailed = errors.New("object instance name reservation failed")

	// ErrTimeRequestOutstanding 已有未完成的时间服务请求
	ErrTimeRequestOutstanding = errors.New("time service request outstanding")

	// ErrOrderingViolation 时间权威数据尚未就绪时读取
	ErrOrderingViolation = errors.New("time authority read before first update")
)

// ============================================================================
//                              实例相关错误
// ============================================================================

var (
	// ErrDuplicateInstance 实例名或句柄重复
	ErrDuplicateInstance = errors.New("duplicate object instance")

	// ErrUnknownInstance 未知实例
	ErrUnknownInstance = errors.New("unknown object instance")

	// ErrRemoteEntity 对远端实体执行了仅限本地实体的操作
	ErrRemoteEntity = errors.New("operation not permitted on remote entity")

	// ErrMissingComponent 实体缺少所需组件
	ErrMissingComponent = errors.New("entity missing component")

	// ErrMalformedValue 编码值格式错误
	ErrMalformedValue = errors.New("malformed encoded value")
)

// ============================================================================
//                              致命错误分类
// ============================================================================

// fatalError 标记不可恢复的错误
//
// 启动/声明错误与协议同步错误属于此类：握手协议没有定义恢复路径，
// 调用方应当终止进程而不是继续运行。
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return "fatal: " + e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

// Fatal 将 err 标记为致命错误；nil 返回 nil
func Fatal(err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return &fatalError{err: err}
}

// IsFatal 判断错误链中是否包含致命标记
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
