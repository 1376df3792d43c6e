package types

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              Sharing - 共享意图
// ============================================================================

// Sharing 属性/参数的共享意图
type Sharing int

const (
	// SharingNone 不共享
	SharingNone Sharing = iota
	// SharingPublish 仅发布
	SharingPublish
	// SharingSubscribe 仅订阅
	SharingSubscribe
	// SharingPublishSubscribe 发布且订阅
	SharingPublishSubscribe
)

// String 返回共享意图字符串表示
func (s Sharing) String() string {
	switch s {
	case SharingNone:
		return "None"
	case SharingPublish:
		return "Publish"
	case SharingSubscribe:
		return "Subscribe"
	case SharingPublishSubscribe:
		return "PublishSubscribe"
	default:
		return fmt.Sprintf("Sharing(%d)", int(s))
	}
}

// Publishes 是否包含发布意图
func (s Sharing) Publishes() bool {
	return s == SharingPublish || s == SharingPublishSubscribe
}

// Subscribes 是否包含订阅意图
func (s Sharing) Subscribes() bool {
	return s == SharingSubscribe || s == SharingPublishSubscribe
}

// ParseSharing 解析共享意图字符串（大小写不敏感，允许 "publish_subscribe"）
func ParseSharing(s string) (Sharing, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "")) {
	case "", "none", "neither":
		return SharingNone, nil
	case "publish":
		return SharingPublish, nil
	case "subscribe":
		return SharingSubscribe, nil
	case "publishsubscribe":
		return SharingPublishSubscribe, nil
	default:
		return SharingNone, fmt.Errorf("%w: %q", ErrInvalidSharing, s)
	}
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *Sharing) UnmarshalText(text []byte) error {
	v, err := ParseSharing(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText 实现 encoding.TextMarshaler
func (s Sharing) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
