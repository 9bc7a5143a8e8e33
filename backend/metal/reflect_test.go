package metal

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/cmt/gpucore"
)

// stream builds reflection data the way the bridge writes it.
type stream []byte

func (s stream) u8(v uint8) stream   { return append(s, v) }
func (s stream) u32(v uint32) stream { return binary.LittleEndian.AppendUint32(s, v) }
func (s stream) u64(v uint64) stream { return binary.LittleEndian.AppendUint64(s, v) }
func (s stream) str(v string) stream { return append(s.u32(uint32(len(v))), v...) }

func (s stream) scalar(kind gpucore.DataType) stream {
	return s.u8(tagScalar).u32(uint32(kind)).u64(0).u64(0)
}

func (s stream) argument(name string, index uint32, access gpucore.ArgumentAccess) stream {
	return s.str(name).u32(index).u8(uint8(gpucore.ArgumentBuffer)).u8(uint8(access)).u8(1)
}

// =============================================================================
// decodeArguments
// =============================================================================

func TestDecodeCopyKernel(t *testing.T) {
	// kernel void copy(device const uint* src [[buffer(0)]], device uint* dst [[buffer(1)]])
	var s stream
	s = s.u32(2)
	s = s.argument("src", 0, gpucore.ArgumentAccessReadOnly).
		u8(tagPointer).u8(uint8(gpucore.ArgumentAccessReadOnly)).u64(4).u64(4).u8(0).scalar(gpucore.DataTypeUInt)
	s = s.argument("dst", 1, gpucore.ArgumentAccessReadWrite).
		u8(tagPointer).u8(uint8(gpucore.ArgumentAccessReadWrite)).u64(4).u64(4).u8(0).scalar(gpucore.DataTypeUInt)

	args, err := decodeArguments(s)
	if err != nil {
		t.Fatalf("decodeArguments: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("len(args) = %d, want 2", len(args))
	}
	tests := []struct {
		name   string
		index  uint32
		access gpucore.ArgumentAccess
	}{
		{"src", 0, gpucore.ArgumentAccessReadOnly},
		{"dst", 1, gpucore.ArgumentAccessReadWrite},
	}
	for i, tt := range tests {
		a := args[i]
		if a.Name != tt.name || a.Index != tt.index || a.Access != tt.access || !a.Active {
			t.Errorf("args[%d] = %+v, want %s@%d %v active", i, a, tt.name, tt.index, tt.access)
		}
		pt := a.Pointer()
		if pt == nil {
			t.Fatalf("args[%d] is not a pointer", i)
		}
		if pt.ElementType() != gpucore.DataTypeUInt || pt.DataSize() != 4 || pt.Alignment() != 4 {
			t.Errorf("args[%d] pointee = %v size %d align %d", i, pt.ElementType(), pt.DataSize(), pt.Alignment())
		}
	}
	if readsArgumentBuffers(args) {
		t.Error("readsArgumentBuffers = true for plain buffers")
	}
}

func TestDecodeArgumentBuffer(t *testing.T) {
	// struct Args { device float* data; uint count; float weights[3]; };
	// kernel void k(constant Args& args [[buffer(0)]])
	var s stream
	s = s.u32(1).argument("args", 0, gpucore.ArgumentAccessReadOnly)
	s = s.u8(tagPointer).u8(uint8(gpucore.ArgumentAccessReadOnly)).u64(8).u64(24).u8(1)
	s = s.u8(tagStruct).u32(3)
	s = s.str("data").u64(0).u32(0).u8(tagPointer).u8(uint8(gpucore.ArgumentAccessReadWrite)).u64(4).u64(4).u8(0).scalar(gpucore.DataTypeFloat)
	s = s.str("count").u64(8).u32(1).scalar(gpucore.DataTypeUInt)
	s = s.str("weights").u64(12).u32(2).u8(tagArray).u64(3).u64(4).scalar(gpucore.DataTypeFloat)

	args, err := decodeArguments(s)
	if err != nil {
		t.Fatalf("decodeArguments: %v", err)
	}
	pt := args[0].Pointer()
	if !pt.ElementIsArgumentBuffer() {
		t.Error("ElementIsArgumentBuffer = false")
	}
	st := pt.ElementStructType()
	if st == nil {
		t.Fatal("pointee is not a struct")
	}
	if st.NumMembers() != 3 {
		t.Fatalf("NumMembers = %d, want 3", st.NumMembers())
	}
	if st.Size() != 24 || st.Alignment() != 8 {
		t.Errorf("struct size/align = %d/%d, want 24/8", st.Size(), st.Alignment())
	}

	data := st.Member(0)
	if data.Name != "data" || data.DataType() != gpucore.DataTypePointer {
		t.Errorf("member 0 = %q %v", data.Name, data.DataType())
	}
	weights, ok := st.MemberByName("weights")
	if !ok {
		t.Fatal("weights member missing")
	}
	at, ok := weights.Type.(*gpucore.ArrayType)
	if !ok {
		t.Fatalf("weights type = %T, want *ArrayType", weights.Type)
	}
	if at.ArrayLength() != 3 || at.Stride() != 4 || at.ElementType() != gpucore.DataTypeFloat {
		t.Errorf("weights = [%d]%v stride %d", at.ArrayLength(), at.ElementType(), at.Stride())
	}
	if weights.Offset != 12 || weights.ArgumentIndex != 2 {
		t.Errorf("weights offset/index = %d/%d, want 12/2", weights.Offset, weights.ArgumentIndex)
	}
	if !readsArgumentBuffers(args) {
		t.Error("readsArgumentBuffers = false")
	}
}

func TestDecodeThreadgroupArgument(t *testing.T) {
	s := stream{}.u32(1).str("scratch").u32(0).u8(uint8(gpucore.ArgumentThreadgroupMemory)).u8(1).u8(0).u8(tagNone)
	args, err := decodeArguments(s)
	if err != nil {
		t.Fatalf("decodeArguments: %v", err)
	}
	a := args[0]
	if a.Kind != gpucore.ArgumentThreadgroupMemory || a.Type != nil || a.Active {
		t.Errorf("argument = %+v", a)
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid := stream{}.u32(1).argument("a", 0, gpucore.ArgumentAccessReadOnly).scalar(gpucore.DataTypeFloat)

	deep := stream{}.u32(1).argument("a", 0, gpucore.ArgumentAccessReadOnly)
	for range maxTypeDepth + 2 {
		deep = deep.u8(tagArray).u64(1).u64(4)
	}
	deep = deep.scalar(gpucore.DataTypeFloat)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-3]},
		{"trailing", append(append(stream{}, valid...), 0)},
		{"huge count", stream{}.u32(1 << 30)},
		{"huge string", stream{}.u32(1).u32(1 << 20)},
		{"unknown tag", stream{}.u32(1).argument("a", 0, 0).u8(9)},
		{"too deep", deep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeArguments(tt.data)
			if !errors.Is(err, errReflection) {
				t.Errorf("err = %v, want errReflection", err)
			}
		})
	}
}

func TestDecodeNoArguments(t *testing.T) {
	args, err := decodeArguments(stream{}.u32(0))
	if err != nil || len(args) != 0 {
		t.Errorf("decodeArguments = %v, %v; want empty", args, err)
	}
}

// =============================================================================
// languageVersion
// =============================================================================

func TestLanguageVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"", 0, false},
		{"2.4", 2<<16 | 4, false},
		{"3.0", 3 << 16, false},
		{"3.1", 3<<16 | 1, false},
		{"3", 0, true},
		{"0.1", 0, true},
		{"3.0beta", 0, true},
		{"v3.0", 0, true},
		{"-1.0", 0, true},
	}
	for _, tt := range tests {
		got, err := languageVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("languageVersion(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("languageVersion(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestMacroPairs(t *testing.T) {
	got := macroPairs(map[string]string{"WIDTH": "64", "SCALE": "2.0f", "DEBUG": ""})
	want := []string{"DEBUG", "", "SCALE", "2.0f", "WIDTH", "64"}
	if len(got) != len(want) {
		t.Fatalf("macroPairs = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("macroPairs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(macroPairs(nil)) != 0 {
		t.Error("macroPairs(nil) is not empty")
	}
}
