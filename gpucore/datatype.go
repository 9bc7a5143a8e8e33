package gpucore

import "fmt"

// DataType identifies the type of a shader value.
//
// The numeric values match Metal's MTLDataType so the Metal driver can
// convert reflection data without a lookup table.
type DataType uint32

// Data types.
const (
	DataTypeNone   DataType = 0
	DataTypeStruct DataType = 1
	DataTypeArray  DataType = 2

	DataTypeFloat    DataType = 3
	DataTypeFloat2   DataType = 4
	DataTypeFloat3   DataType = 5
	DataTypeFloat4   DataType = 6
	DataTypeFloat2x2 DataType = 7
	DataTypeFloat2x3 DataType = 8
	DataTypeFloat2x4 DataType = 9
	DataTypeFloat3x2 DataType = 10
	DataTypeFloat3x3 DataType = 11
	DataTypeFloat3x4 DataType = 12
	DataTypeFloat4x2 DataType = 13
	DataTypeFloat4x3 DataType = 14
	DataTypeFloat4x4 DataType = 15

	DataTypeHalf    DataType = 16
	DataTypeHalf2   DataType = 17
	DataTypeHalf3   DataType = 18
	DataTypeHalf4   DataType = 19
	DataTypeHalf2x2 DataType = 20
	DataTypeHalf2x3 DataType = 21
	DataTypeHalf2x4 DataType = 22
	DataTypeHalf3x2 DataType = 23
	DataTypeHalf3x3 DataType = 24
	DataTypeHalf3x4 DataType = 25
	DataTypeHalf4x2 DataType = 26
	DataTypeHalf4x3 DataType = 27
	DataTypeHalf4x4 DataType = 28

	DataTypeInt  DataType = 29
	DataTypeInt2 DataType = 30
	DataTypeInt3 DataType = 31
	DataTypeInt4 DataType = 32

	DataTypeUInt  DataType = 33
	DataTypeUInt2 DataType = 34
	DataTypeUInt3 DataType = 35
	DataTypeUInt4 DataType = 36

	DataTypeShort  DataType = 37
	DataTypeShort2 DataType = 38
	DataTypeShort3 DataType = 39
	DataTypeShort4 DataType = 40

	DataTypeUShort  DataType = 41
	DataTypeUShort2 DataType = 42
	DataTypeUShort3 DataType = 43
	DataTypeUShort4 DataType = 44

	DataTypeChar  DataType = 45
	DataTypeChar2 DataType = 46
	DataTypeChar3 DataType = 47
	DataTypeChar4 DataType = 48

	DataTypeUChar  DataType = 49
	DataTypeUChar2 DataType = 50
	DataTypeUChar3 DataType = 51
	DataTypeUChar4 DataType = 52

	DataTypeBool  DataType = 53
	DataTypeBool2 DataType = 54
	DataTypeBool3 DataType = 55
	DataTypeBool4 DataType = 56

	DataTypePointer DataType = 60

	DataTypeLong  DataType = 81
	DataTypeULong DataType = 85
)

// dataTypeInfo describes the shape of a numeric data type.
type dataTypeInfo struct {
	name    string
	scalar  uint64 // scalar size in bytes
	rows    uint64 // vector width, or rows of a matrix column
	columns uint64 // 1 for scalars and vectors
}

var dataTypes = map[DataType]dataTypeInfo{
	DataTypeFloat:    {"Float", 4, 1, 1},
	DataTypeFloat2:   {"Float2", 4, 2, 1},
	DataTypeFloat3:   {"Float3", 4, 3, 1},
	DataTypeFloat4:   {"Float4", 4, 4, 1},
	DataTypeFloat2x2: {"Float2x2", 4, 2, 2},
	DataTypeFloat2x3: {"Float2x3", 4, 3, 2},
	DataTypeFloat2x4: {"Float2x4", 4, 4, 2},
	DataTypeFloat3x2: {"Float3x2", 4, 2, 3},
	DataTypeFloat3x3: {"Float3x3", 4, 3, 3},
	DataTypeFloat3x4: {"Float3x4", 4, 4, 3},
	DataTypeFloat4x2: {"Float4x2", 4, 2, 4},
	DataTypeFloat4x3: {"Float4x3", 4, 3, 4},
	DataTypeFloat4x4: {"Float4x4", 4, 4, 4},

	DataTypeHalf:    {"Half", 2, 1, 1},
	DataTypeHalf2:   {"Half2", 2, 2, 1},
	DataTypeHalf3:   {"Half3", 2, 3, 1},
	DataTypeHalf4:   {"Half4", 2, 4, 1},
	DataTypeHalf2x2: {"Half2x2", 2, 2, 2},
	DataTypeHalf2x3: {"Half2x3", 2, 3, 2},
	DataTypeHalf2x4: {"Half2x4", 2, 4, 2},
	DataTypeHalf3x2: {"Half3x2", 2, 2, 3},
	DataTypeHalf3x3: {"Half3x3", 2, 3, 3},
	DataTypeHalf3x4: {"Half3x4", 2, 4, 3},
	DataTypeHalf4x2: {"Half4x2", 2, 2, 4},
	DataTypeHalf4x3: {"Half4x3", 2, 3, 4},
	DataTypeHalf4x4: {"Half4x4", 2, 4, 4},

	DataTypeInt:  {"Int", 4, 1, 1},
	DataTypeInt2: {"Int2", 4, 2, 1},
	DataTypeInt3: {"Int3", 4, 3, 1},
	DataTypeInt4: {"Int4", 4, 4, 1},

	DataTypeUInt:  {"UInt", 4, 1, 1},
	DataTypeUInt2: {"UInt2", 4, 2, 1},
	DataTypeUInt3: {"UInt3", 4, 3, 1},
	DataTypeUInt4: {"UInt4", 4, 4, 1},

	DataTypeShort:  {"Short", 2, 1, 1},
	DataTypeShort2: {"Short2", 2, 2, 1},
	DataTypeShort3: {"Short3", 2, 3, 1},
	DataTypeShort4: {"Short4", 2, 4, 1},

	DataTypeUShort:  {"UShort", 2, 1, 1},
	DataTypeUShort2: {"UShort2", 2, 2, 1},
	DataTypeUShort3: {"UShort3", 2, 3, 1},
	DataTypeUShort4: {"UShort4", 2, 4, 1},

	DataTypeChar:  {"Char", 1, 1, 1},
	DataTypeChar2: {"Char2", 1, 2, 1},
	DataTypeChar3: {"Char3", 1, 3, 1},
	DataTypeChar4: {"Char4", 1, 4, 1},

	DataTypeUChar:  {"UChar", 1, 1, 1},
	DataTypeUChar2: {"UChar2", 1, 2, 1},
	DataTypeUChar3: {"UChar3", 1, 3, 1},
	DataTypeUChar4: {"UChar4", 1, 4, 1},

	DataTypeBool:  {"Bool", 1, 1, 1},
	DataTypeBool2: {"Bool2", 1, 2, 1},
	DataTypeBool3: {"Bool3", 1, 3, 1},
	DataTypeBool4: {"Bool4", 1, 4, 1},

	DataTypeLong:  {"Long", 8, 1, 1},
	DataTypeULong: {"ULong", 8, 1, 1},
}

// String returns the string representation of DataType.
func (t DataType) String() string {
	switch t {
	case DataTypeNone:
		return "None"
	case DataTypeStruct:
		return "Struct"
	case DataTypeArray:
		return "Array"
	case DataTypePointer:
		return "Pointer"
	}
	if info, ok := dataTypes[t]; ok {
		return info.name
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// IsNumeric reports whether t is a scalar, vector or matrix type.
func (t DataType) IsNumeric() bool {
	_, ok := dataTypes[t]
	return ok
}

// vectorSize returns the MSL size of a vector of n scalars of size s.
// Three-component vectors occupy the space of four.
func vectorSize(s, n uint64) uint64 {
	if n == 3 {
		n = 4
	}
	return s * n
}

// Size returns the size in bytes of t under Metal Shading Language layout
// rules. Pointers are 8 bytes; aggregate and unknown types report 0.
func (t DataType) Size() uint64 {
	if t == DataTypePointer {
		return 8
	}
	info, ok := dataTypes[t]
	if !ok {
		return 0
	}
	return vectorSize(info.scalar, info.rows) * info.columns
}

// Alignment returns the alignment in bytes of t under Metal Shading Language
// layout rules. Matrices align like their column vectors.
func (t DataType) Alignment() uint64 {
	if t == DataTypePointer {
		return 8
	}
	info, ok := dataTypes[t]
	if !ok {
		return 0
	}
	return vectorSize(info.scalar, info.rows)
}

// ArgumentAccess describes how a shader accesses an argument.
type ArgumentAccess uint8

const (
	// ArgumentAccessReadOnly arguments are only read.
	ArgumentAccessReadOnly ArgumentAccess = iota

	// ArgumentAccessReadWrite arguments are read and written.
	ArgumentAccessReadWrite

	// ArgumentAccessWriteOnly arguments are only written.
	ArgumentAccessWriteOnly
)

// String returns the string representation of ArgumentAccess.
func (a ArgumentAccess) String() string {
	switch a {
	case ArgumentAccessReadOnly:
		return "ReadOnly"
	case ArgumentAccessReadWrite:
		return "ReadWrite"
	case ArgumentAccessWriteOnly:
		return "WriteOnly"
	default:
		return fmt.Sprintf("ArgumentAccess(%d)", int(a))
	}
}

// AlignUp rounds v up to a multiple of align. An align of 0 or 1 returns v.
func AlignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
