// Package encoding 实现 HLA 基本数据表示
//
// 支持的表示：
//   - HLAinteger16BE / HLAinteger32BE / HLAinteger64BE 以及 32/64 位 LE 变体
//   - HLAfloat32BE / HLAfloat64BE / HLAfloat32LE / HLAfloat64LE
//   - HLAboolean（HLAinteger32BE，0/1）
//   - HLAunicodeString（HLAinteger32BE 字符数 + UTF-16BE）
//   - HLAASCIIstring（HLAinteger32BE 长度 + 字节）
//   - HLAopaqueData（HLAinteger32BE 长度 + 字节）
//   - Vector3（HLAfixedArray，3 个 HLAfloat64LE）
//
// 解码严格校验长度，格式错误返回 types.ErrMalformedValue。
package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/dep2p/go-federate/pkg/types"
)

// Codec 值 ↔ 线格式字节
type Codec[V any] interface {
	Encode(v V) []byte
	Decode(data []byte) (V, error)
}

type funcCodec[V any] struct {
	enc func(V) []byte
	dec func([]byte) (V, error)
}

func (c funcCodec[V]) Encode(v V) []byte             { return c.enc(v) }
func (c funcCodec[V]) Decode(data []byte) (V, error) { return c.dec(data) }

// New 由编码/解码函数构造 Codec
func New[V any](enc func(V) []byte, dec func([]byte) (V, error)) Codec[V] {
	return funcCodec[V]{enc: enc, dec: dec}
}

func malformed(kind string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", types.ErrMalformedValue, kind, fmt.Sprintf(format, args...))
}

func fixed[V any](kind string, size int, order binary.ByteOrder, put func(binary.ByteOrder, []byte, V), get func(binary.ByteOrder, []byte) V) Codec[V] {
	return funcCodec[V]{
		enc: func(v V) []byte {
			b := make([]byte, size)
			put(order, b, v)
			return b
		},
		dec: func(data []byte) (V, error) {
			if len(data) != size {
				var zero V
				return zero, malformed(kind, "want %d bytes, got %d", size, len(data))
			}
			return get(order, data), nil
		},
	}
}

// ============================================================================
//                              整数
// ============================================================================

var (
	// Int16BE HLAinteger16BE
	Int16BE = fixed("HLAinteger16BE", 2, binary.BigEndian,
		func(o binary.ByteOrder, b []byte, v int16) { o.PutUint16(b, uint16(v)) },
		func(o binary.ByteOrder, b []byte) int16 { return int16(o.Uint16(b)) })

	// Int32BE HLAinteger32BE
	Int32BE = fixed("HLAinteger32BE", 4, binary.BigEndian, putInt32, getInt32)

	// Int32LE HLAinteger32LE
	Int32LE = fixed("HLAinteger32LE", 4, binary.LittleEndian, putInt32, getInt32)

	// Int64BE HLAinteger64BE
	Int64BE = fixed("HLAinteger64BE", 8, binary.BigEndian, putInt64, getInt64)

	// Int64LE HLAinteger64LE
	Int64LE = fixed("HLAinteger64LE", 8, binary.LittleEndian, putInt64, getInt64)
)

func putInt32(o binary.ByteOrder, b []byte, v int32) { o.PutUint32(b, uint32(v)) }
func getInt32(o binary.ByteOrder, b []byte) int32    { return int32(o.Uint32(b)) }
func putInt64(o binary.ByteOrder, b []byte, v int64) { o.PutUint64(b, uint64(v)) }
func getInt64(o binary.ByteOrder, b []byte) int64    { return int64(o.Uint64(b)) }

// ============================================================================
//                              浮点
// ============================================================================

var (
	// Float32BE HLAfloat32BE
	Float32BE = fixed("HLAfloat32BE", 4, binary.BigEndian, putFloat32, getFloat32)

	// Float32LE HLAfloat32LE
	Float32LE = fixed("HLAfloat32LE", 4, binary.LittleEndian, putFloat32, getFloat32)

	// Float64BE HLAfloat64BE
	Float64BE = fixed("HLAfloat64BE", 8, binary.BigEndian, putFloat64, getFloat64)

	// Float64LE HLAfloat64LE
	Float64LE = fixed("HLAfloat64LE", 8, binary.LittleEndian, putFloat64, getFloat64)
)

func putFloat32(o binary.ByteOrder, b []byte, v float32) { o.PutUint32(b, math.Float32bits(v)) }
func getFloat32(o binary.ByteOrder, b []byte) float32    { return math.Float32frombits(o.Uint32(b)) }
func putFloat64(o binary.ByteOrder, b []byte, v float64) { o.PutUint64(b, math.Float64bits(v)) }
func getFloat64(o binary.ByteOrder, b []byte) float64    { return math.Float64frombits(o.Uint64(b)) }

// ============================================================================
//                              布尔
// ============================================================================

// Boolean HLAboolean：HLAinteger32BE 枚举，HLAfalse=0，HLAtrue=1
var Boolean Codec[bool] = funcCodec[bool]{
	enc: func(v bool) []byte {
		if v {
			return Int32BE.Encode(1)
		}
		return Int32BE.Encode(0)
	},
	dec: func(data []byte) (bool, error) {
		n, err := Int32BE.Decode(data)
		if err != nil {
			return false, err
		}
		switch n {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return false, malformed("HLAboolean", "enumerator %d", n)
		}
	},
}

// ============================================================================
//                              变长数据
// ============================================================================

// readCount 读取 HLAinteger32BE 元素计数，并校验剩余字节数等于 count*elemSize
func readCount(kind string, data []byte, elemSize int) (int, error) {
	if len(data) < 4 {
		return 0, malformed(kind, "missing element count")
	}
	n := int32(binary.BigEndian.Uint32(data))
	if n < 0 {
		return 0, malformed(kind, "negative element count %d", n)
	}
	if int64(len(data)-4) != int64(n)*int64(elemSize) {
		return 0, malformed(kind, "count %d does not match %d payload bytes", n, len(data)-4)
	}
	return int(n), nil
}

// UnicodeString HLAunicodeString
var UnicodeString Codec[string] = funcCodec[string]{
	enc: func(s string) []byte {
		units := utf16.Encode([]rune(s))
		b := make([]byte, 4+2*len(units))
		binary.BigEndian.PutUint32(b, uint32(len(units)))
		for i, u := range units {
			binary.BigEndian.PutUint16(b[4+2*i:], u)
		}
		return b
	},
	dec: func(data []byte) (string, error) {
		n, err := readCount("HLAunicodeString", data, 2)
		if err != nil {
			return "", err
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(data[4+2*i:])
		}
		return string(utf16.Decode(units)), nil
	},
}

// ASCIIString HLAASCIIstring
var ASCIIString Codec[string] = funcCodec[string]{
	enc: func(s string) []byte {
		b := make([]byte, 4+len(s))
		binary.BigEndian.PutUint32(b, uint32(len(s)))
		copy(b[4:], s)
		return b
	},
	dec: func(data []byte) (string, error) {
		if _, err := readCount("HLAASCIIstring", data, 1); err != nil {
			return "", err
		}
		return string(data[4:]), nil
	},
}

// Opaque HLAopaqueData
var Opaque Codec[[]byte] = funcCodec[[]byte]{
	enc: func(v []byte) []byte {
		b := make([]byte, 4+len(v))
		binary.BigEndian.PutUint32(b, uint32(len(v)))
		copy(b[4:], v)
		return b
	},
	dec: func(data []byte) ([]byte, error) {
		if _, err := readCount("HLAopaqueData", data, 1); err != nil {
			return nil, err
		}
		out := make([]byte, len(data)-4)
		copy(out, data[4:])
		return out, nil
	},
}

// ============================================================================
//                              定长数组
// ============================================================================

// Vector3 三维向量
type Vector3 [3]float64

// Vector3LE HLAfixedArray<HLAfloat64LE, 3>
var Vector3LE Codec[Vector3] = funcCodec[Vector3]{
	enc: func(v Vector3) []byte {
		b := make([]byte, 24)
		for i, x := range v {
			binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
		}
		return b
	},
	dec: func(data []byte) (Vector3, error) {
		var v Vector3
		if len(data) != 24 {
			return v, malformed("Vector3", "want 24 bytes, got %d", len(data))
		}
		for i := range v {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
		}
		return v, nil
	},
}
