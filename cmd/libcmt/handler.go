package main

/*
#include "cmt_types.h"

static inline void cmtInvokeCompletedHandler(cmtCompletedHandler fn, cmtHandle commandBuffer, void *userData) {
	fn(commandBuffer, userData);
}
*/
import "C"

import (
	"unsafe"

	"github.com/gogpu/cmt/internal/capi"
)

// completedHandler adapts a C completion callback. A nil fn yields nil so
// the registration fails as a precondition.
func completedHandler(fn C.cmtCompletedHandler, userData unsafe.Pointer) func(capi.Handle) {
	if fn == nil {
		return nil
	}
	return func(h capi.Handle) {
		C.cmtInvokeCompletedHandler(fn, C.cmtHandle(h), userData)
	}
}
