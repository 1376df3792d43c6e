// Package execution 实现执行配置对象
//
// 执行配置对象（ExCO）由联邦的主控成员发布，其他成员订阅它作为锚对象：
// 它的出现标志联邦已就绪，它携带最小公共时间步长（LCTS）与执行模式，
// 因此同时充当时间权威。模式切换通过 ModeTransitionRequest 交互申请。
package execution

import (
	"fmt"

	"github.com/dep2p/go-federate/pkg/lib/encoding"
	"github.com/dep2p/go-federate/pkg/types"
)

// Mode 执行模式（HLAinteger16BE 枚举）
type Mode int16

const (
	// ModeUninitialized 未初始化
	ModeUninitialized Mode = iota
	// ModeInitializing 初始化中
	ModeInitializing
	// ModeRunning 运行
	ModeRunning
	// ModeFreeze 冻结
	ModeFreeze
	// ModeShutdown 关闭
	ModeShutdown
)

var modeNames = [...]string{
	ModeUninitialized: "uninitialized",
	ModeInitializing:  "initializing",
	ModeRunning:       "running",
	ModeFreeze:        "freeze",
	ModeShutdown:      "shutdown",
}

// Valid 是否为已定义的模式
func (m Mode) Valid() bool {
	return m >= ModeUninitialized && m <= ModeShutdown
}

// String 返回模式字符串表示
func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("unknown(%d)", int16(m))
	}
	return modeNames[m]
}

// ParseMode 解析模式名
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown execution mode %q", s)
}

// ModeCodec 执行模式编解码器；未定义的模式值视为格式错误
var ModeCodec = encoding.New(
	func(m Mode) []byte { return encoding.Int16BE.Encode(int16(m)) },
	func(data []byte) (Mode, error) {
		v, err := encoding.Int16BE.Decode(data)
		if err != nil {
			return 0, err
		}
		if m := Mode(v); m.Valid() {
			return m, nil
		}
		return 0, fmt.Errorf("%w: execution mode %d", types.ErrMalformedValue, v)
	},
)
