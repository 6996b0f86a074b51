// Package cwe maps termination messages onto Common Weakness Enumeration codes.
// https://cwe.mitre.org/
package cwe

import (
	"fmt"
	"strings"
)

type Code int

// Unclassified is returned when no table entry matches.
const Unclassified Code = 0

func (c Code) String() string {
	if c == Unclassified {
		return "unclassified"
	}
	return fmt.Sprintf("CWE-%d", int(c))
}

type CWEData struct {
	ID          Code
	Title       string
	Description string
}

type entry struct {
	substring string
	code      Code
}

// table is scanned in order; more specific substrings come first.
var table = []entry{
	{"double free", 415},
	{"use after free", 416},
	{"not at start of buffer", 761},
	{"not on the heap", 590},
	{"out of bounds write", 787},
	{"out of bounds read", 125},
	{"overlaps live allocation", 119},
	{"memory leak", 401},
	{"null pointer", 476},
	{"division by zero", 369},
	{"divide by zero", 369},
	{"call stack overflow", 674},
	{"uninitialized", 457},
	{"assertion", 617},
}

var CWEDataMap = map[Code]*CWEData{
	119: {119, "Improper Restriction of Operations within the Bounds of a Memory Buffer",
		"The software performs operations on a memory buffer, but it can read from or write to a memory location that is outside of the intended boundary of the buffer."},
	125: {125, "Out-of-bounds Read",
		"The software reads data past the end, or before the beginning, of the intended buffer."},
	369: {369, "Divide By Zero",
		"The product divides a value by zero."},
	401: {401, "Missing Release of Memory after Effective Lifetime",
		"The software does not sufficiently track and release allocated memory after it has been used, which slowly consumes remaining memory."},
	415: {415, "Double Free",
		"The product calls free() twice on the same memory address, potentially leading to modification of unexpected memory locations."},
	416: {416, "Use After Free",
		"Referencing memory after it has been freed can cause a program to crash, use unexpected values, or execute code."},
	457: {457, "Use of Uninitialized Variable",
		"The code uses a variable that has not been initialized, leading to unpredictable or unintended results."},
	476: {476, "NULL Pointer Dereference",
		"A NULL pointer dereference occurs when the application dereferences a pointer that it expects to be valid, but is NULL, typically causing a crash or exit."},
	590: {590, "Free of Memory not on the Heap",
		"The application calls free() on a pointer to memory that was not allocated using associated heap allocation functions such as malloc(), calloc(), or realloc()."},
	617: {617, "Reachable Assertion",
		"The product contains an assert() or similar statement that can be triggered by an attacker, which leads to an application exit or other behavior that is more severe than necessary."},
	674: {674, "Uncontrolled Recursion",
		"The product does not properly control the amount of recursion that takes place, consuming excessive resources, such as allocated memory or the program stack."},
	761: {761, "Free of Pointer not at Start of Buffer",
		"The application calls free() on a pointer to a memory resource that was allocated on the heap, but the pointer is not at the start of the buffer."},
	787: {787, "Out-of-bounds Write",
		"The software writes data past the end, or before the beginning, of the intended buffer."},
}

// Classify returns the code of the first table entry whose substring occurs in msg.
func Classify(msg string) Code {
	lower := strings.ToLower(msg)
	for _, e := range table {
		if strings.Contains(lower, e.substring) {
			return e.code
		}
	}
	return Unclassified
}

// Lookup returns the registry data for code, or nil.
func Lookup(code Code) *CWEData {
	return CWEDataMap[code]
}
