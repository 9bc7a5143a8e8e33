package capi

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/cmt"
	"github.com/gogpu/cmt/gpucore"
)

const copyKernel = `
@group(0) @binding(0) var<storage, read> src: array<u32>;
@group(0) @binding(1) var<storage, read_write> dst: array<u32>;

@compute @workgroup_size(64)
fn copy_buffer(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x < arrayLength(&dst)) {
        dst[gid.x] = src[gid.x];
    }
}
`

const argumentCopyKernel = `
alias BufferAddress = vec2<u32>;

struct CopyArgs {
    src: BufferAddress,
    dst: BufferAddress,
    count: u32,
}

@group(0) @binding(0) var<storage, read> args: CopyArgs;

@compute @workgroup_size(64)
fn argument_copy(@builtin(global_invocation_id) gid: vec3<u32>) {
    let n = args.count;
}
`

func softwareEnv(validation string) func(string) string {
	return func(key string) string {
		switch key {
		case EnvDriver:
			return "software"
		case EnvValidation:
			return validation
		}
		return ""
	}
}

// openDevice opens the software device through the C entry point and
// checks at cleanup that every handle the test created was released.
func openDevice(t *testing.T) Handle {
	t.Helper()
	before := LiveObjects()
	dev, st := deviceOpen(softwareEnv(""))
	if st != StatusOK {
		t.Fatalf("deviceOpen() = %v: %s", st, LastError())
	}
	t.Cleanup(func() {
		if n := LiveObjects(); n != before {
			t.Errorf("LiveObjects() = %d after cleanup, want %d", n, before)
		}
	})
	return dev
}

func must[T any](t *testing.T, name string) func(T, Status) T {
	return func(v T, st Status) T {
		t.Helper()
		if st != StatusOK {
			t.Fatalf("%s = %v: %s", name, st, LastError())
		}
		return v
	}
}

func mustStatus(t *testing.T, name string, st Status) {
	t.Helper()
	if st != StatusOK {
		t.Fatalf("%s = %v: %s", name, st, LastError())
	}
}

func release(t *testing.T, hs ...Handle) {
	t.Helper()
	for _, h := range hs {
		if st := Release(h); st != StatusOK {
			t.Errorf("Release(%v) = %v: %s", h, st, LastError())
		}
	}
}

// =============================================================================
// Status mapping
// =============================================================================

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"released", &cmt.Error{Kind: cmt.KindPrecondition, Op: "Release", Err: cmt.ErrReleased}, StatusInvalidHandle},
		{"null", &cmt.Error{Kind: cmt.KindPrecondition, Op: "Lookup", Err: cmt.ErrNullHandle}, StatusInvalidHandle},
		{"wrong type", &cmt.Error{Kind: cmt.KindPrecondition, Op: "Lookup", Err: cmt.ErrInvalidState}, StatusInvalidHandle},
		{"bad state", &cmt.Error{Kind: cmt.KindPrecondition, Op: "CommandBuffer.Commit", Err: cmt.ErrInvalidState}, StatusPrecondition},
		{"allocation", &cmt.Error{Kind: cmt.KindAllocation, Err: cmt.ErrAllocation}, StatusAllocation},
		{"compilation", &cmt.Error{Kind: cmt.KindCompilation}, StatusCompilation},
		{"submission", &cmt.Error{Kind: cmt.KindSubmission}, StatusSubmission},
		{"not found", &cmt.Error{Kind: cmt.KindNotFound, Err: cmt.ErrFunctionNotFound}, StatusNotFound},
		{"foreign", errors.New("boom"), StatusInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnvOptions(t *testing.T) {
	tests := []struct {
		driver, validation string
		want               int
	}{
		{"", "", 0},
		{"software", "", 1},
		{"", "report", 1},
		{" metal ", "FailFast", 2},
		{"", "fail-fast", 1},
		{"", "sometimes", 0},
	}
	for _, tt := range tests {
		env := map[string]string{EnvDriver: tt.driver, EnvValidation: tt.validation}
		if got := len(envOptions(func(k string) string { return env[k] })); got != tt.want {
			t.Errorf("envOptions(%q, %q) = %d options, want %d", tt.driver, tt.validation, got, tt.want)
		}
	}
}

// =============================================================================
// Devices and handles
// =============================================================================

func TestDeviceOpenFromEnvironment(t *testing.T) {
	defer cmt.SetValidationMode(cmt.ValidationReport)

	dev, st := deviceOpen(softwareEnv("report"))
	mustStatus(t, "deviceOpen()", st)
	defer release(t, dev)

	if got := must[string](t, "DeviceDriver()")(DeviceDriver(dev)); got != "software" {
		t.Errorf("DeviceDriver() = %q, want software", got)
	}
	if got := must[string](t, "DeviceLanguage()")(DeviceLanguage(dev)); got != "WGSL" {
		t.Errorf("DeviceLanguage() = %q, want WGSL", got)
	}
	if name := must[string](t, "DeviceName()")(DeviceName(dev)); name == "" {
		t.Error("DeviceName() is empty")
	}
	if cmt.Validation() != cmt.ValidationReport {
		t.Errorf("Validation() = %v, want Report", cmt.Validation())
	}

	_, st = deviceOpen(softwareEnv(""))
	if st != StatusPrecondition {
		t.Errorf("second deviceOpen() = %v, want Precondition", st)
	}
}

func TestDeviceOpenUnknownDriver(t *testing.T) {
	_, st := deviceOpen(func(k string) string {
		if k == EnvDriver {
			return "does-not-exist"
		}
		return ""
	})
	if st != StatusNotFound {
		t.Errorf("deviceOpen(unknown) = %v, want NotFound", st)
	}
	if LastError() == "" {
		t.Error("LastError() is empty after a failed open")
	}
}

func TestInvalidHandles(t *testing.T) {
	dev := openDevice(t)
	buf := must[Handle](t, "DeviceNewBuffer()")(DeviceNewBuffer(dev, 16, uint32(cmt.StorageModeShared)))

	if st := Release(0); st != StatusInvalidHandle {
		t.Errorf("Release(0) = %v, want InvalidHandle", st)
	}
	if _, st := DeviceNewCommandQueue(buf); st != StatusInvalidHandle {
		t.Errorf("DeviceNewCommandQueue(buffer) = %v, want InvalidHandle", st)
	}

	mustStatus(t, "Retain(buffer)", Retain(buf))
	release(t, buf, buf)
	if _, st := BufferLength(buf); st != StatusInvalidHandle {
		t.Errorf("BufferLength(released) = %v, want InvalidHandle", st)
	}
	if st := Release(buf); st != StatusInvalidHandle {
		t.Errorf("Release(released) = %v, want InvalidHandle", st)
	}

	if _, st := DeviceNewBuffer(dev, 0, uint32(cmt.StorageModeShared)); st != StatusPrecondition {
		t.Errorf("DeviceNewBuffer(0) = %v, want Precondition", st)
	}
	if _, st := DeviceNewBuffer(dev, 16, 256); st != StatusPrecondition {
		t.Errorf("DeviceNewBuffer(mode 256) = %v, want Precondition", st)
	}
	private := must[Handle](t, "DeviceNewBuffer(private)")(DeviceNewBuffer(dev, 16, uint32(cmt.StorageModePrivate)))
	if _, st := BufferContents(private); st != StatusPrecondition {
		t.Errorf("BufferContents(private) = %v, want Precondition", st)
	}
	release(t, private, dev)
}

// =============================================================================
// Compilation errors
// =============================================================================

func TestLibraryErrorHandle(t *testing.T) {
	dev := openDevice(t)

	lib, errH, st := DeviceNewLibrary(dev, "fn broken(")
	if st != StatusCompilation || lib != 0 || errH == 0 {
		t.Fatalf("DeviceNewLibrary(broken) = %v, %v, %v", lib, errH, st)
	}
	if d := must[string](t, "ErrorDomain()")(ErrorDomain(errH)); d == "" {
		t.Error("ErrorDomain() is empty")
	}
	if d := must[string](t, "ErrorDescription()")(ErrorDescription(errH)); d == "" {
		t.Error("ErrorDescription() is empty")
	}
	release(t, errH)

	lib, errH, st = DeviceNewLibrary(dev, copyKernel)
	if st != StatusOK || errH != 0 {
		t.Fatalf("DeviceNewLibrary(copy) = %v, %v, %v", lib, errH, st)
	}
	names := must[[]string](t, "LibraryFunctionNames()")(LibraryFunctionNames(lib))
	if len(names) != 1 || names[0] != "copy_buffer" {
		t.Errorf("LibraryFunctionNames() = %v", names)
	}
	if _, st := LibraryNewFunction(lib, "missing"); st != StatusNotFound {
		t.Errorf("LibraryNewFunction(missing) = %v, want NotFound", st)
	}
	release(t, lib, dev)
}

// =============================================================================
// Command submission
// =============================================================================

func TestCopyKernelRoundTrip(t *testing.T) {
	dev := openDevice(t)

	lib, _, st := DeviceNewLibrary(dev, copyKernel)
	mustStatus(t, "DeviceNewLibrary()", st)
	fn := must[Handle](t, "LibraryNewFunction()")(LibraryNewFunction(lib, "copy_buffer"))
	pso, errH, st := DeviceNewComputePipelineState(dev, fn)
	if st != StatusOK || errH != 0 {
		t.Fatalf("DeviceNewComputePipelineState() = %v, %v: %s", errH, st, LastError())
	}
	release(t, fn, lib)

	if w := must[uint64](t, "ThreadExecutionWidth()")(ComputePipelineStateThreadExecutionWidth(pso)); w == 0 {
		t.Error("ThreadExecutionWidth() = 0")
	}

	const n = 100
	data := make([]byte, n*4)
	for i := range n {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i*3))
	}
	src := must[Handle](t, "DeviceNewBufferWithBytes()")(DeviceNewBufferWithBytes(dev, data))
	dst := must[Handle](t, "DeviceNewBuffer()")(DeviceNewBuffer(dev, n*4, uint32(cmt.StorageModeShared)))
	queue := must[Handle](t, "DeviceNewCommandQueue()")(DeviceNewCommandQueue(dev))
	mustStatus(t, "CommandQueueSetLabel()", CommandQueueSetLabel(queue, "capi"))
	cb := must[Handle](t, "CommandQueueNewCommandBuffer()")(CommandQueueNewCommandBuffer(queue))

	var (
		mu        sync.Mutex
		completed []Handle
	)
	mustStatus(t, "CommandBufferAddCompletedHandler()", CommandBufferAddCompletedHandler(cb, func(h Handle) {
		mu.Lock()
		completed = append(completed, h)
		mu.Unlock()
	}))

	enc := must[Handle](t, "CommandBufferComputeEncoder()")(CommandBufferComputeEncoder(cb))
	if _, st := CommandBufferComputeEncoder(cb); st != StatusPrecondition {
		t.Errorf("second CommandBufferComputeEncoder() = %v, want Precondition", st)
	}
	mustStatus(t, "SetComputePipelineState()", ComputeEncoderSetComputePipelineState(enc, pso))
	mustStatus(t, "SetBuffer(src)", ComputeEncoderSetBuffer(enc, src, 0, 0))
	mustStatus(t, "SetBuffer(dst)", ComputeEncoderSetBuffer(enc, dst, 0, 1))
	mustStatus(t, "DispatchThreads()", ComputeEncoderDispatchThreads(enc, [3]uint64{n, 1, 1}, [3]uint64{64, 1, 1}))
	mustStatus(t, "EndEncoding()", ComputeEncoderEndEncoding(enc))
	release(t, enc)

	if st := CommandBufferWaitUntilCompleted(cb); st != StatusPrecondition {
		t.Errorf("CommandBufferWaitUntilCompleted() before commit = %v, want Precondition", st)
	}
	mustStatus(t, "CommandBufferCommit()", CommandBufferCommit(cb))
	if st := CommandBufferCommit(cb); st != StatusPrecondition {
		t.Errorf("second CommandBufferCommit() = %v, want Precondition", st)
	}
	mustStatus(t, "CommandBufferWaitUntilCompleted()", CommandBufferWaitUntilCompleted(cb))

	if s := must[uint32](t, "CommandBufferStatus()")(CommandBufferStatus(cb)); s != uint32(cmt.StatusCompleted) {
		t.Errorf("CommandBufferStatus() = %d, want %d", s, cmt.StatusCompleted)
	}
	if e := must[Handle](t, "CommandBufferError()")(CommandBufferError(cb)); e != 0 {
		t.Errorf("CommandBufferError() = %v, want 0", e)
	}
	mu.Lock()
	if len(completed) != 1 || completed[0] != cb {
		t.Errorf("completed handler calls = %v, want [%v]", completed, cb)
	}
	mu.Unlock()

	out := must[[]byte](t, "BufferContents()")(BufferContents(dst))
	for i := range n {
		if got := binary.LittleEndian.Uint32(out[i*4:]); got != uint32(i*3) {
			t.Fatalf("dst[%d] = %d, want %d", i, got, i*3)
		}
	}
	release(t, cb, queue, src, dst, pso, dev)
}

// =============================================================================
// Reflection
// =============================================================================

func TestFunctionArgumentReflection(t *testing.T) {
	dev := openDevice(t)

	lib, _, st := DeviceNewLibrary(dev, argumentCopyKernel)
	mustStatus(t, "DeviceNewLibrary()", st)
	fn := must[Handle](t, "LibraryNewFunction()")(LibraryNewFunction(lib, "argument_copy"))

	if n := must[int](t, "FunctionArgumentCount()")(FunctionArgumentCount(fn)); n != 1 {
		t.Fatalf("FunctionArgumentCount() = %d, want 1", n)
	}
	if _, st := FunctionArgument(fn, 1); st != StatusPrecondition {
		t.Errorf("FunctionArgument(1) = %v, want Precondition", st)
	}
	arg := must[Handle](t, "FunctionArgument()")(FunctionArgument(fn, 0))
	if name := must[string](t, "ArgumentName()")(ArgumentName(arg)); name != "args" {
		t.Errorf("ArgumentName() = %q, want args", name)
	}
	if idx := must[uint32](t, "ArgumentIndex()")(ArgumentIndex(arg)); idx != 0 {
		t.Errorf("ArgumentIndex() = %d, want 0", idx)
	}

	ptr := must[Handle](t, "ArgumentPointerType()")(ArgumentPointerType(arg))
	if ptr == 0 {
		t.Fatal("ArgumentPointerType() = 0")
	}
	if !must[bool](t, "ElementIsArgumentBuffer()")(PointerTypeElementIsArgumentBuffer(ptr)) {
		t.Error("PointerTypeElementIsArgumentBuffer() = false")
	}
	if a := must[Handle](t, "ElementArrayType()")(PointerTypeElementArrayType(ptr)); a != 0 {
		t.Errorf("PointerTypeElementArrayType() = %v, want 0", a)
	}
	st2 := must[Handle](t, "ElementStructType()")(PointerTypeElementStructType(ptr))
	if st2 == 0 {
		t.Fatal("PointerTypeElementStructType() = 0")
	}
	size := must[uint64](t, "StructTypeDataSize()")(StructTypeDataSize(st2))
	align := must[uint64](t, "StructTypeAlignment()")(StructTypeAlignment(st2))
	if size != 24 || align != 8 {
		t.Errorf("struct size/alignment = %d/%d, want 24/8", size, align)
	}
	if ds := must[uint64](t, "PointerTypeDataSize()")(PointerTypeDataSize(ptr)); ds != size {
		t.Errorf("PointerTypeDataSize() = %d, want %d", ds, size)
	}

	wantOffsets := []uint64{0, 8, 16}
	if n := must[int](t, "StructTypeMemberCount()")(StructTypeMemberCount(st2)); n != len(wantOffsets) {
		t.Fatalf("StructTypeMemberCount() = %d, want %d", n, len(wantOffsets))
	}
	for i, want := range wantOffsets {
		m := must[StructMember](t, "StructTypeMember()")(StructTypeMember(st2, i))
		if m.Offset != want {
			t.Errorf("member %d offset = %d, want %d", i, m.Offset, want)
		}
	}
	if _, st := StructTypeMember(st2, 3); st != StatusPrecondition {
		t.Errorf("StructTypeMember(3) = %v, want Precondition", st)
	}

	enc := must[Handle](t, "FunctionNewArgumentEncoder()")(FunctionNewArgumentEncoder(fn, 0))
	if n := must[uint64](t, "ArgumentEncoderEncodedLength()")(ArgumentEncoderEncodedLength(enc)); n != 24 {
		t.Errorf("ArgumentEncoderEncodedLength() = %d, want 24", n)
	}
	if _, st := FunctionNewArgumentEncoder(fn, 5); st != StatusPrecondition {
		t.Errorf("FunctionNewArgumentEncoder(5) = %v, want Precondition", st)
	}

	release(t, enc, st2, ptr, arg, fn, lib, dev)
}

func TestArgumentDescriptorsNested(t *testing.T) {
	dev := openDevice(t)
	pointer, float := uint32(gpucore.DataTypePointer), uint32(gpucore.DataTypeFloat)

	innerPtr, innerCount := NewArgumentDescriptor(), NewArgumentDescriptor()
	mustStatus(t, "Set(inner ptr)", ArgumentDescriptorSet(innerPtr, ArgumentDescriptor{DataType: pointer, Index: 0}))
	mustStatus(t, "Set(inner count)", ArgumentDescriptorSet(innerCount, ArgumentDescriptor{DataType: uint32(gpucore.DataTypeUInt), Index: 1}))

	outerPtr, outerArr := NewArgumentDescriptor(), NewArgumentDescriptor()
	mustStatus(t, "Set(outer ptr)", ArgumentDescriptorSet(outerPtr, ArgumentDescriptor{DataType: pointer, Index: 0}))
	mustStatus(t, "SetElements()", ArgumentDescriptorSetElements(outerPtr, []Handle{innerPtr, innerCount}))
	mustStatus(t, "Set(outer array)", ArgumentDescriptorSet(outerArr, ArgumentDescriptor{DataType: float, Index: 1, ArrayLength: 3}))

	got := must[ArgumentDescriptor](t, "ArgumentDescriptorGet()")(ArgumentDescriptorGet(outerArr))
	if got.DataType != float || got.Index != 1 || got.ArrayLength != 3 {
		t.Errorf("ArgumentDescriptorGet() = %+v", got)
	}

	enc := must[Handle](t, "DeviceNewArgumentEncoder()")(DeviceNewArgumentEncoder(dev, []Handle{outerPtr, outerArr}))
	if n := must[uint64](t, "EncodedLength()")(ArgumentEncoderEncodedLength(enc)); n != 24 {
		t.Errorf("ArgumentEncoderEncodedLength() = %d, want 24", n)
	}

	ptr := must[Handle](t, "ArgumentEncoderPointerType()")(ArgumentEncoderPointerType(enc))
	layout := must[Handle](t, "ElementStructType()")(PointerTypeElementStructType(ptr))
	member := must[Handle](t, "StructTypeMemberPointerType()")(StructTypeMemberPointerType(layout, 0))
	if member == 0 {
		t.Fatal("StructTypeMemberPointerType(0) = 0")
	}
	if !must[bool](t, "ElementIsArgumentBuffer()")(PointerTypeElementIsArgumentBuffer(member)) {
		t.Error("nested pointer ElementIsArgumentBuffer = false")
	}
	ds := must[uint64](t, "DataSize()")(PointerTypeDataSize(member))
	al := must[uint64](t, "Alignment()")(PointerTypeAlignment(member))
	if ds != 16 || al != 8 {
		t.Errorf("nested DataSize/Alignment = %d/%d, want 16/8", ds, al)
	}
	arr := must[Handle](t, "StructTypeMemberArrayType()")(StructTypeMemberArrayType(layout, 1))
	if arr == 0 {
		t.Fatal("StructTypeMemberArrayType(1) = 0")
	}
	if n := must[uint64](t, "ArrayTypeArrayLength()")(ArrayTypeArrayLength(arr)); n != 3 {
		t.Errorf("ArrayTypeArrayLength() = %d, want 3", n)
	}
	if et := must[uint32](t, "ArrayTypeElementType()")(ArrayTypeElementType(arr)); et != float {
		t.Errorf("ArrayTypeElementType() = %d, want %d", et, float)
	}

	nested := must[Handle](t, "NewArgumentEncoderForBuffer()")(ArgumentEncoderNewArgumentEncoderForBuffer(enc, 0))
	if n := must[uint64](t, "nested EncodedLength()")(ArgumentEncoderEncodedLength(nested)); n != 16 {
		t.Errorf("nested ArgumentEncoderEncodedLength() = %d, want 16", n)
	}

	argBuf := must[Handle](t, "DeviceNewBuffer()")(DeviceNewBuffer(dev, 64, uint32(cmt.StorageModeShared)))
	target := must[Handle](t, "DeviceNewBuffer()")(DeviceNewBuffer(dev, 64, uint32(cmt.StorageModeShared)))
	mustStatus(t, "SetArgumentBuffer()", ArgumentEncoderSetArgumentBuffer(nested, argBuf, 0))
	mustStatus(t, "SetBuffer()", ArgumentEncoderSetBuffer(nested, target, 8, 0))
	count := must[[]byte](t, "ConstantData()")(ArgumentEncoderConstantData(nested, 1))
	binary.LittleEndian.PutUint32(count, 7)

	contents := must[[]byte](t, "BufferContents()")(BufferContents(argBuf))
	addr := must[uint64](t, "BufferGPUAddress()")(BufferGPUAddress(target))
	if got := binary.LittleEndian.Uint64(contents); got != addr+8 {
		t.Errorf("encoded address = %#x, want %#x", got, addr+8)
	}
	if got := binary.LittleEndian.Uint32(contents[8:]); got != 7 {
		t.Errorf("encoded count = %d, want 7", got)
	}

	release(t, argBuf, target, nested, arr, member, layout, ptr, enc)
	release(t, innerPtr, innerCount, outerPtr, outerArr, dev)
}

func TestArgumentDescriptorSelfElement(t *testing.T) {
	dev := openDevice(t)

	d := NewArgumentDescriptor()
	mustStatus(t, "Set()", ArgumentDescriptorSet(d, ArgumentDescriptor{DataType: uint32(gpucore.DataTypePointer)}))
	mustStatus(t, "SetElements(self)", ArgumentDescriptorSetElements(d, []Handle{d}))

	if _, st := DeviceNewArgumentEncoder(dev, []Handle{d}); st != StatusPrecondition {
		t.Fatalf("DeviceNewArgumentEncoder(cyclic) = %v, want StatusPrecondition", st)
	}
	if msg := LastError(); !strings.Contains(msg, "cyclic") {
		t.Errorf("LastError() = %q, want it to mention the cycle", msg)
	}
	release(t, d, dev)
}
