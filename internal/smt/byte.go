// Package smt holds the symbolic byte expressions and boolean formulas that
// path constraints are built from, plus the solver collaborators that decide them.
package smt

import (
	"fmt"
	"sort"
)

// VarKey names one byte of a symbolic input array.
type VarKey struct {
	Array string
	Index int
}

func (k VarKey) String() string {
	return fmt.Sprintf("%s[%d]", k.Array, k.Index)
}

func (k VarKey) less(other VarKey) bool {
	if k.Array != other.Array {
		return k.Array < other.Array
	}
	return k.Index < other.Index
}

// Byte is an 8-bit value that is either concrete or a read of one symbolic input byte.
type Byte struct {
	symbolic bool
	value    uint8
	key      VarKey
}

func NewByteVal(value uint8) Byte {
	return Byte{value: value}
}

func NewByte(array string, index int) Byte {
	return Byte{symbolic: true, key: VarKey{Array: array, Index: index}}
}

// NewBytes returns n consecutive symbolic bytes of array.
func NewBytes(array string, n int) []Byte {
	result := make([]Byte, n)
	for i := range result {
		result[i] = NewByte(array, i)
	}
	return result
}

// NewBytesVal lifts a concrete buffer.
func NewBytesVal(data []byte) []Byte {
	result := make([]Byte, len(data))
	for i, b := range data {
		result[i] = NewByteVal(b)
	}
	return result
}

// NewStringVal lifts s plus its NUL terminator.
func NewStringVal(s string) []Byte {
	return NewBytesVal(append([]byte(s), 0))
}

func (b Byte) IsSymbolic() bool {
	return b.symbolic
}

func (b Byte) Value() uint8 {
	return b.value
}

func (b Byte) Key() VarKey {
	return b.key
}

// Resolve substitutes the assignment into b.
func (b Byte) Resolve(a Assignment) Byte {
	if !b.symbolic {
		return b
	}
	if v, ok := a[b.key]; ok {
		return NewByteVal(v)
	}
	return b
}

func (b Byte) String() string {
	if b.symbolic {
		return b.key.String()
	}
	return fmt.Sprintf("0x%02x", b.value)
}

// Assignment maps symbolic bytes to concrete values.
type Assignment map[VarKey]uint8

func (a Assignment) Clone() Assignment {
	clone := make(Assignment, len(a))
	for k, v := range a {
		clone[k] = v
	}
	return clone
}

// Keys returns the assigned variables in a stable order.
func (a Assignment) Keys() []VarKey {
	keys := make([]VarKey, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []VarKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].less(keys[j])
	})
}
