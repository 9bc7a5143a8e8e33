package main

/*
#include "cmt_types.h"
*/
import "C"

import (
	"unsafe"

	"github.com/gogpu/cmt/internal/capi"
)

//export cmtArgumentName
func cmtArgumentName(argument C.cmtHandle, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	name, st := capi.ArgumentName(handle(argument))
	putString(name, buf, capacity, length)
	return status(st)
}

//export cmtArgumentIndex
func cmtArgumentIndex(argument C.cmtHandle, index *C.uint32_t) C.cmtStatus {
	v, st := capi.ArgumentIndex(handle(argument))
	store(index, C.uint32_t(v))
	return status(st)
}

//export cmtArgumentAccess
func cmtArgumentAccess(argument C.cmtHandle, access *C.uint32_t) C.cmtStatus {
	v, st := capi.ArgumentAccess(handle(argument))
	store(access, C.uint32_t(v))
	return status(st)
}

//export cmtArgumentIsActive
func cmtArgumentIsActive(argument C.cmtHandle, active *C.bool) C.cmtStatus {
	v, st := capi.ArgumentIsActive(handle(argument))
	store(active, C.bool(v))
	return status(st)
}

//export cmtArgumentPointerType
func cmtArgumentPointerType(argument C.cmtHandle, pointerType *C.cmtHandle) C.cmtStatus {
	h, st := capi.ArgumentPointerType(handle(argument))
	putHandle(pointerType, h)
	return status(st)
}

//export cmtPointerTypeElementType
func cmtPointerTypeElementType(pointerType C.cmtHandle, dataType *C.uint32_t) C.cmtStatus {
	v, st := capi.PointerTypeElementType(handle(pointerType))
	store(dataType, C.uint32_t(v))
	return status(st)
}

//export cmtPointerTypeAccess
func cmtPointerTypeAccess(pointerType C.cmtHandle, access *C.uint32_t) C.cmtStatus {
	v, st := capi.PointerTypeAccess(handle(pointerType))
	store(access, C.uint32_t(v))
	return status(st)
}

//export cmtPointerTypeAlignment
func cmtPointerTypeAlignment(pointerType C.cmtHandle, alignment *C.uint64_t) C.cmtStatus {
	v, st := capi.PointerTypeAlignment(handle(pointerType))
	store(alignment, C.uint64_t(v))
	return status(st)
}

//export cmtPointerTypeDataSize
func cmtPointerTypeDataSize(pointerType C.cmtHandle, dataSize *C.uint64_t) C.cmtStatus {
	v, st := capi.PointerTypeDataSize(handle(pointerType))
	store(dataSize, C.uint64_t(v))
	return status(st)
}

//export cmtPointerTypeElementIsArgumentBuffer
func cmtPointerTypeElementIsArgumentBuffer(pointerType C.cmtHandle, isArgumentBuffer *C.bool) C.cmtStatus {
	v, st := capi.PointerTypeElementIsArgumentBuffer(handle(pointerType))
	store(isArgumentBuffer, C.bool(v))
	return status(st)
}

//export cmtPointerTypeElementStructType
func cmtPointerTypeElementStructType(pointerType C.cmtHandle, structType *C.cmtHandle) C.cmtStatus {
	h, st := capi.PointerTypeElementStructType(handle(pointerType))
	putHandle(structType, h)
	return status(st)
}

//export cmtPointerTypeElementArrayType
func cmtPointerTypeElementArrayType(pointerType C.cmtHandle, arrayType *C.cmtHandle) C.cmtStatus {
	h, st := capi.PointerTypeElementArrayType(handle(pointerType))
	putHandle(arrayType, h)
	return status(st)
}

//export cmtStructTypeDataSize
func cmtStructTypeDataSize(structType C.cmtHandle, dataSize *C.uint64_t) C.cmtStatus {
	v, st := capi.StructTypeDataSize(handle(structType))
	store(dataSize, C.uint64_t(v))
	return status(st)
}

//export cmtStructTypeAlignment
func cmtStructTypeAlignment(structType C.cmtHandle, alignment *C.uint64_t) C.cmtStatus {
	v, st := capi.StructTypeAlignment(handle(structType))
	store(alignment, C.uint64_t(v))
	return status(st)
}

//export cmtStructTypeMemberCount
func cmtStructTypeMemberCount(structType C.cmtHandle, count *C.size_t) C.cmtStatus {
	n, st := capi.StructTypeMemberCount(handle(structType))
	store(count, C.size_t(n))
	return status(st)
}

//export cmtStructTypeMember
func cmtStructTypeMember(structType C.cmtHandle, index C.size_t, member *C.cmtStructMember) C.cmtStatus {
	m, st := capi.StructTypeMember(handle(structType), int(index))
	if st == capi.StatusOK && member != nil {
		member.offset = C.uint64_t(m.Offset)
		member.argumentIndex = C.uint32_t(m.ArgumentIndex)
		member.dataType = C.uint32_t(m.DataType)
	}
	return status(st)
}

//export cmtStructTypeMemberName
func cmtStructTypeMemberName(structType C.cmtHandle, index C.size_t, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	m, st := capi.StructTypeMember(handle(structType), int(index))
	putString(m.Name, buf, capacity, length)
	return status(st)
}

//export cmtStructTypeMemberPointerType
func cmtStructTypeMemberPointerType(structType C.cmtHandle, index C.size_t, pointerType *C.cmtHandle) C.cmtStatus {
	h, st := capi.StructTypeMemberPointerType(handle(structType), int(index))
	putHandle(pointerType, h)
	return status(st)
}

//export cmtStructTypeMemberStructType
func cmtStructTypeMemberStructType(structType C.cmtHandle, index C.size_t, memberType *C.cmtHandle) C.cmtStatus {
	h, st := capi.StructTypeMemberStructType(handle(structType), int(index))
	putHandle(memberType, h)
	return status(st)
}

//export cmtStructTypeMemberArrayType
func cmtStructTypeMemberArrayType(structType C.cmtHandle, index C.size_t, arrayType *C.cmtHandle) C.cmtStatus {
	h, st := capi.StructTypeMemberArrayType(handle(structType), int(index))
	putHandle(arrayType, h)
	return status(st)
}

//export cmtArrayTypeArrayLength
func cmtArrayTypeArrayLength(arrayType C.cmtHandle, length *C.uint64_t) C.cmtStatus {
	v, st := capi.ArrayTypeArrayLength(handle(arrayType))
	store(length, C.uint64_t(v))
	return status(st)
}

//export cmtArrayTypeStride
func cmtArrayTypeStride(arrayType C.cmtHandle, stride *C.uint64_t) C.cmtStatus {
	v, st := capi.ArrayTypeStride(handle(arrayType))
	store(stride, C.uint64_t(v))
	return status(st)
}

//export cmtArrayTypeElementType
func cmtArrayTypeElementType(arrayType C.cmtHandle, dataType *C.uint32_t) C.cmtStatus {
	v, st := capi.ArrayTypeElementType(handle(arrayType))
	store(dataType, C.uint32_t(v))
	return status(st)
}

//export cmtArrayTypeElementStructType
func cmtArrayTypeElementStructType(arrayType C.cmtHandle, structType *C.cmtHandle) C.cmtStatus {
	h, st := capi.ArrayTypeElementStructType(handle(arrayType))
	putHandle(structType, h)
	return status(st)
}

//export cmtArrayTypeElementArrayType
func cmtArrayTypeElementArrayType(arrayType C.cmtHandle, elementType *C.cmtHandle) C.cmtStatus {
	h, st := capi.ArrayTypeElementArrayType(handle(arrayType))
	putHandle(elementType, h)
	return status(st)
}

//export cmtNewArgumentDescriptor
func cmtNewArgumentDescriptor(descriptor *C.cmtHandle) C.cmtStatus {
	putHandle(descriptor, capi.NewArgumentDescriptor())
	return status(capi.StatusOK)
}

//export cmtArgumentDescriptorSet
func cmtArgumentDescriptorSet(descriptor C.cmtHandle, fields *C.cmtArgumentDescriptorFields) C.cmtStatus {
	if fields == nil {
		return status(capi.StatusPrecondition)
	}
	return status(capi.ArgumentDescriptorSet(handle(descriptor), capi.ArgumentDescriptor{
		DataType:               uint32(fields.dataType),
		Index:                  uint32(fields.index),
		Access:                 uint32(fields.access),
		ArrayLength:            uint64(fields.arrayLength),
		ConstantBlockAlignment: uint64(fields.constantBlockAlignment),
	}))
}

//export cmtArgumentDescriptorGet
func cmtArgumentDescriptorGet(descriptor C.cmtHandle, fields *C.cmtArgumentDescriptorFields) C.cmtStatus {
	d, st := capi.ArgumentDescriptorGet(handle(descriptor))
	if st == capi.StatusOK && fields != nil {
		fields.dataType = C.uint32_t(d.DataType)
		fields.index = C.uint32_t(d.Index)
		fields.access = C.uint32_t(d.Access)
		fields.arrayLength = C.uint64_t(d.ArrayLength)
		fields.constantBlockAlignment = C.uint64_t(d.ConstantBlockAlignment)
	}
	return status(st)
}

//export cmtArgumentDescriptorSetElements
func cmtArgumentDescriptorSetElements(descriptor C.cmtHandle, elements *C.cmtHandle, count C.size_t) C.cmtStatus {
	return status(capi.ArgumentDescriptorSetElements(handle(descriptor), handles(elements, count)))
}

//export cmtDeviceNewArgumentEncoder
func cmtDeviceNewArgumentEncoder(device C.cmtHandle, descriptors *C.cmtHandle, count C.size_t, encoder *C.cmtHandle) C.cmtStatus {
	h, st := capi.DeviceNewArgumentEncoder(handle(device), handles(descriptors, count))
	putHandle(encoder, h)
	return status(st)
}

//export cmtFunctionNewArgumentEncoder
func cmtFunctionNewArgumentEncoder(function C.cmtHandle, index C.uint32_t, encoder *C.cmtHandle) C.cmtStatus {
	h, st := capi.FunctionNewArgumentEncoder(handle(function), uint32(index))
	putHandle(encoder, h)
	return status(st)
}

//export cmtArgumentEncoderEncodedLength
func cmtArgumentEncoderEncodedLength(encoder C.cmtHandle, length *C.uint64_t) C.cmtStatus {
	v, st := capi.ArgumentEncoderEncodedLength(handle(encoder))
	store(length, C.uint64_t(v))
	return status(st)
}

//export cmtArgumentEncoderAlignment
func cmtArgumentEncoderAlignment(encoder C.cmtHandle, alignment *C.uint64_t) C.cmtStatus {
	v, st := capi.ArgumentEncoderAlignment(handle(encoder))
	store(alignment, C.uint64_t(v))
	return status(st)
}

//export cmtArgumentEncoderPointerType
func cmtArgumentEncoderPointerType(encoder C.cmtHandle, pointerType *C.cmtHandle) C.cmtStatus {
	h, st := capi.ArgumentEncoderPointerType(handle(encoder))
	putHandle(pointerType, h)
	return status(st)
}

//export cmtArgumentEncoderSetArgumentBuffer
func cmtArgumentEncoderSetArgumentBuffer(encoder, buffer C.cmtHandle, offset C.uint64_t) C.cmtStatus {
	return status(capi.ArgumentEncoderSetArgumentBuffer(handle(encoder), handle(buffer), uint64(offset)))
}

//export cmtArgumentEncoderSetBuffer
func cmtArgumentEncoderSetBuffer(encoder, buffer C.cmtHandle, offset C.uint64_t, index C.uint32_t) C.cmtStatus {
	return status(capi.ArgumentEncoderSetBuffer(handle(encoder), handle(buffer), uint64(offset), uint32(index)))
}

//export cmtArgumentEncoderConstantData
func cmtArgumentEncoderConstantData(encoder C.cmtHandle, index C.uint32_t, data *unsafe.Pointer) C.cmtStatus {
	b, st := capi.ArgumentEncoderConstantData(handle(encoder), uint32(index))
	if st == capi.StatusOK && len(b) > 0 {
		store(data, unsafe.Pointer(unsafe.SliceData(b)))
	}
	return status(st)
}

//export cmtArgumentEncoderNewArgumentEncoderForBuffer
func cmtArgumentEncoderNewArgumentEncoderForBuffer(encoder C.cmtHandle, index C.uint32_t, nested *C.cmtHandle) C.cmtStatus {
	h, st := capi.ArgumentEncoderNewArgumentEncoderForBuffer(handle(encoder), uint32(index))
	putHandle(nested, h)
	return status(st)
}

//export cmtErrorDomain
func cmtErrorDomain(e C.cmtHandle, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	s, st := capi.ErrorDomain(handle(e))
	putString(s, buf, capacity, length)
	return status(st)
}

//export cmtErrorCode
func cmtErrorCode(e C.cmtHandle, code *C.int64_t) C.cmtStatus {
	v, st := capi.ErrorCode(handle(e))
	store(code, C.int64_t(v))
	return status(st)
}

//export cmtErrorDescription
func cmtErrorDescription(e C.cmtHandle, buf *C.char, capacity C.size_t, length *C.size_t) C.cmtStatus {
	s, st := capi.ErrorDescription(handle(e))
	putString(s, buf, capacity, length)
	return status(st)
}
