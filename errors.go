package federate

import "github.com/dep2p/go-federate/pkg/types"

// 公共错误定义（与 pkg/types 中的哨兵错误相同，可直接用 errors.Is 比较）
var (
	// ────────────────────────────────────────────────────────────────────────
	// 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotConnected 未连接 RTI
	ErrNotConnected = types.ErrNotConnected

	// ErrNotStarted 联邦成员未启动
	ErrNotStarted = types.ErrNotStarted

	// ErrAlreadyStarted 联邦成员已启动
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrClosed 联邦成员已关闭
	ErrClosed = types.ErrClosed

	// ────────────────────────────────────────────────────────────────────────
	// 同步错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrGateInterrupted 等待被取消
	ErrGateInterrupted = types.ErrGateInterrupted

	// ErrGateStalled 等待超时
	ErrGateStalled = types.ErrGateStalled

	// ErrTimeRequestOutstanding 已有未完成的时间服务请求
	ErrTimeRequestOutstanding = types.ErrTimeRequestOutstanding

	// ErrOrderingViolation 在执行配置首次更新前读取时间步长
	ErrOrderingViolation = types.ErrOrderingViolation

	// ────────────────────────────────────────────────────────────────────────
	// 实例错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrReservationFailed 实例名预留失败
	ErrReservationFailed = types.ErrReservationFailed

	// ErrUnknownInstance 未知实例
	ErrUnknownInstance = types.ErrUnknownInstance

	// ErrRemoteEntity 不允许对远端实体执行的操作
	ErrRemoteEntity = types.ErrRemoteEntity

	// ErrNotPublished 类尚未发布
	ErrNotPublished = types.ErrNotPublished
)

// IsFatal 判断错误是否致命
//
// 致命错误表示联邦同步协议已无法继续，调用方应 Close 后终止进程。
func IsFatal(err error) bool {
	return types.IsFatal(err)
}
