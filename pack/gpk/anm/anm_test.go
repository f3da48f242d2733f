package anm

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/pack/gpk/skl"
)

func cause(err error) error {
	return errors.Cause(err)
}

func p32(b []byte, off uint32, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

func pf32(b []byte, off uint32, v float32) {
	p32(b, off, math.Float32bits(v))
}

// buildTestV1 builds a 2-bone blob: bone 0 has a constant rotation
// (0,0,0) -> w=1, bone 1 has an animated position channel with bit
// width 8, offset (0,0,0) and scale (10,10,10). segSamples holds one
// quantized byte per frame per segment, used for all 3 components.
// boundaries must hold one frame start per segment when there are
// two or more segments.
func buildTestV1(frameCount uint32, boundaries []uint32, segSamples [][]byte) []byte {
	segCount := uint32(len(segSamples))

	boundarySize := uint32(0)
	if segCount >= 2 {
		boundarySize = (segCount + 1) * 4
	}
	segTableSize := boundarySize + segCount*SEGMENT_RECORD_SIZE
	bitfieldSize := uint32(3 * 4) // 1 word per group
	constSize := uint32(CONSTANT_ENTRY_SIZE)
	animHeaderSize := uint32(ANIMATED_HEADER_SIZE)

	bodySizes := make([]uint32, segCount)
	totalBodySize := uint32(0)
	for i, samples := range segSamples {
		// 1 width byte + 3 bytes per frame (3 components * 8 bits)
		bodySizes[i] = 1 + uint32(len(samples))*3
		totalBodySize += bodySizes[i]
	}

	sectionsStart := uint32(0xC4)
	size := sectionsStart + segTableSize + bitfieldSize + constSize + animHeaderSize + totalBodySize
	blob := make([]byte, size)

	p32(blob, 0, ANIMATION_MAGIC)
	pf32(blob, 0x08, 30)
	p32(blob, 0x0C, frameCount)
	p32(blob, 0x10, 2) // bone count in low 16 bits
	p32(blob, 0x48, 0) // not the V0 sentinel

	p32(blob, V1_SUBHEADER+V1_OFF_SEGMENT_COUNT, segCount)
	p32(blob, V1_SUBHEADER+V1_OFF_ROT_ANIM_COUNT, 0)
	p32(blob, V1_SUBHEADER+V1_OFF_POS_ANIM_COUNT, 1)
	p32(blob, V1_SUBHEADER+V1_OFF_SCALE_ANIM_CNT, 0)
	p32(blob, V1_SUBHEADER+V1_OFF_TOTAL_ANIM_CNT, 1)

	cursor := sectionsStart
	sections := [4]uint32{}

	// segment table
	sections[0] = cursor - V1_BASE
	if segCount >= 2 {
		for i, b := range boundaries {
			p32(blob, cursor+uint32(i)*4, b)
		}
		p32(blob, cursor+segCount*4, frameCount) // sentinel
		cursor += boundarySize
	}
	recordsAt := cursor
	cursor += segCount * SEGMENT_RECORD_SIZE

	// classification bitfield, most-significant pair first:
	// rotation: bone 0 constant; position: bone 1 animated
	sections[1] = cursor - V1_BASE
	p32(blob, cursor, uint32(KIND_CONSTANT)<<30)
	p32(blob, cursor+4, uint32(KIND_ANIMATED)<<28)
	p32(blob, cursor+8, 0)
	cursor += bitfieldSize

	// constant rotation (0,0,0) -> w=1
	sections[2] = cursor - V1_BASE
	cursor += constSize

	// animated channel header
	sections[3] = cursor - V1_BASE
	pf32(blob, cursor+12, 10)
	pf32(blob, cursor+16, 10)
	pf32(blob, cursor+20, 10)
	cursor += animHeaderSize

	for i := range sections {
		p32(blob, V1_SUBHEADER+V1_OFF_SECTION_OFFSETS+uint32(i)*4, sections[i])
	}

	// segment bodies: width byte directly followed by the bitstream
	for iSeg, samples := range segSamples {
		rec := recordsAt + uint32(iSeg)*SEGMENT_RECORD_SIZE
		p32(blob, rec, 1)        // animated bits flag
		p32(blob, rec+4, 0)      // rotation channel check
		p32(blob, rec+8, 1)      // position+scale channel check
		p32(blob, rec+12, cursor-V1_BASE)

		blob[cursor] = 8
		cursor++
		for _, q := range samples {
			blob[cursor] = q
			blob[cursor+1] = q
			blob[cursor+2] = q
			cursor += 3
		}
	}

	return blob
}

var expectedPositions = []float32{0, 10 * 85.0 / 255.0, 10 * 170.0 / 255.0, 10}

func TestSyntheticV1RoundTrip(t *testing.T) {
	blob := buildTestV1(4, nil, [][]byte{{0, 85, 170, 255}})

	a, err := Decode(blob, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if a.Fps != 30 || a.FrameCount != 4 || a.BoneCount != 2 {
		t.Fatalf("metadata: %+v", a)
	}
	if a.IsV0 || !a.IsWorldSpace {
		t.Fatalf("V1 blob flags: IsV0=%v IsWorldSpace=%v", a.IsV0, a.IsWorldSpace)
	}
	if len(a.Frames) != 4 {
		t.Fatalf("frames: %d", len(a.Frames))
	}

	for iFrame, pose := range a.Frames {
		for axis := 0; axis < 3; axis++ {
			got := pose[1].Position[axis]
			if math.Abs(float64(got-expectedPositions[iFrame])) > 0.01 {
				t.Errorf("frame %d axis %d: position %v; expected %v",
					iFrame, axis, got, expectedPositions[iFrame])
			}
		}

		// constant rotation channel must be frame-invariant identity
		q := pose[0].Rotation
		if q.W != 1 || q.V[0] != 0 || q.V[1] != 0 || q.V[2] != 0 {
			t.Errorf("frame %d: bone 0 rotation %+v; expected identity", iFrame, q)
		}

		for iBone := range pose {
			length := pose[iBone].Rotation.Len()
			if length < 0.999 || length > 1.001 {
				t.Errorf("frame %d bone %d: rotation norm %v", iFrame, iBone, length)
			}
		}
	}

	// exact affine boundaries: q=0 -> offset, q=255 -> offset+scale
	if a.Frames[0][1].Position[0] != 0 {
		t.Errorf("q=0 dequantized to %v; expected exact 0", a.Frames[0][1].Position[0])
	}
	if a.Frames[3][1].Position[0] != 10 {
		t.Errorf("q=255 dequantized to %v; expected exact 10", a.Frames[3][1].Position[0])
	}
}

func TestDecodeIsRepeatable(t *testing.T) {
	blob := buildTestV1(4, nil, [][]byte{{0, 85, 170, 255}})

	a1, err := Decode(blob, nil)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := Decode(blob, nil)
	if err != nil {
		t.Fatal(err)
	}

	for iFrame := range a1.Frames {
		for iBone := range a1.Frames[iFrame] {
			if a1.Frames[iFrame][iBone] != a2.Frames[iFrame][iBone] {
				t.Fatalf("frame %d bone %d differs between decodes", iFrame, iBone)
			}
		}
	}
}

func TestMultiSegment(t *testing.T) {
	blob := buildTestV1(6, []uint32{0, 3}, [][]byte{{0, 85, 170}, {255, 85, 0}})

	a, err := Decode(blob, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	expected := []float32{0, 10 * 85.0 / 255.0, 10 * 170.0 / 255.0, 10, 10 * 85.0 / 255.0, 0}
	for iFrame := range a.Frames {
		got := a.Frames[iFrame][1].Position[0]
		if math.Abs(float64(got-expected[iFrame])) > 0.01 {
			t.Errorf("frame %d: position %v; expected %v", iFrame, got, expected[iFrame])
		}
	}
}

func TestBoundaryPastFrameCount(t *testing.T) {
	blob := buildTestV1(6, []uint32{0, 10}, [][]byte{{0, 85, 170}, {255, 85, 0}})

	a, err := Decode(blob, nil)
	if cause(err) != ErrInconsistent {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}
	if a == nil || a.Frames != nil {
		t.Fatalf("metadata should survive with nil frames, got %+v", a)
	}
}

func TestNonMonotonicBoundaries(t *testing.T) {
	blob := buildTestV1(6, []uint32{0, 0}, [][]byte{{0, 85, 170}, {255, 85, 0}})

	a, err := Decode(blob, nil)
	if cause(err) != ErrInconsistent {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}
	if a == nil || a.Frames != nil {
		t.Fatalf("metadata should survive with nil frames, got %+v", a)
	}
}

func TestBadMagic(t *testing.T) {
	blob := buildTestV1(4, nil, [][]byte{{0, 85, 170, 255}})
	p32(blob, 0, 0xDEADBEEF)

	a, err := Decode(blob, nil)
	if cause(err) != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
	if a != nil {
		t.Fatalf("no metadata expected for foreign blobs")
	}
}

func TestTruncatedHeader(t *testing.T) {
	blob := buildTestV1(4, nil, [][]byte{{0, 85, 170, 255}})

	for _, size := range []int{0, 4, 95} {
		if _, err := Decode(blob[:size], nil); cause(err) != ErrTruncated {
			t.Errorf("size %d: expected ErrTruncated, got %v", size, err)
		}
	}
}

func TestMetadataSurvivesTruncatedBody(t *testing.T) {
	blob := buildTestV1(4, nil, [][]byte{{0, 85, 170, 255}})

	a, err := Decode(blob[:HEADER_SIZE], nil)
	if cause(err) != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if a == nil || a.Frames != nil {
		t.Fatalf("expected metadata with nil frames, got %+v", a)
	}
	if a.FrameCount != 4 || a.BoneCount != 2 {
		t.Fatalf("metadata lost: %+v", a)
	}
}

func TestChannelCountMismatch(t *testing.T) {
	blob := buildTestV1(4, nil, [][]byte{{0, 85, 170, 255}})
	// claim two animated position channels, bitfield still has one
	p32(blob, V1_SUBHEADER+V1_OFF_POS_ANIM_COUNT, 2)
	p32(blob, V1_SUBHEADER+V1_OFF_TOTAL_ANIM_CNT, 2)

	if _, err := Decode(blob, nil); cause(err) != ErrInconsistent {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}
}

func TestRestPoseFallback(t *testing.T) {
	blob := buildTestV1(4, nil, [][]byte{{0, 85, 170, 255}})

	rest := []skl.JointRestPose{
		{
			Parent:        -1,
			WorldPosition: mgl32.Vec3{5, 6, 7},
			WorldRotation: mgl32.QuatRotate(1, mgl32.Vec3{0, 0, 1}),
			WorldScale:    mgl32.Vec3{2, 2, 2},
		},
		{
			Parent:        0,
			WorldPosition: mgl32.Vec3{1, 1, 1},
			WorldRotation: mgl32.QuatIdent(),
			WorldScale:    mgl32.Vec3{3, 3, 3},
		},
	}

	a, err := Decode(blob, rest)
	if err != nil {
		t.Fatal(err)
	}

	for iFrame, pose := range a.Frames {
		// bone 0 position/scale are identity channels
		if pose[0].Position != rest[0].WorldPosition {
			t.Errorf("frame %d: bone 0 position %v; expected rest %v",
				iFrame, pose[0].Position, rest[0].WorldPosition)
		}
		if pose[0].Scale != rest[0].WorldScale {
			t.Errorf("frame %d: bone 0 scale %v; expected rest %v",
				iFrame, pose[0].Scale, rest[0].WorldScale)
		}
		// bone 1 rotation is identity channel, scale too
		if pose[1].Scale != rest[1].WorldScale {
			t.Errorf("frame %d: bone 1 scale %v; expected rest %v",
				iFrame, pose[1].Scale, rest[1].WorldScale)
		}
	}
}

func TestMarshalDecodedFrames(t *testing.T) {
	a, err := Decode(buildTestV1(4, nil, [][]byte{{0, 85, 170, 255}}), nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.Marshal(nil)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}

	if string(fields["DecodedFrames"]) != "4" {
		t.Errorf("DecodedFrames = %s", fields["DecodedFrames"])
	}
	if string(fields["Decoded"]) != "true" {
		t.Errorf("Decoded = %s", fields["Decoded"])
	}
	if _, clash := fields["FrameCount"]; clash {
		t.Error("header frame count leaked into the outer payload")
	}
}

func buildTestV0(frameCount, boneCount uint32) []byte {
	blob := make([]byte, HEADER_SIZE+frameCount*boneCount*V0_KEYFRAME_SIZE)
	p32(blob, 0, ANIMATION_MAGIC)
	pf32(blob, 0x08, 15)
	p32(blob, 0x0C, frameCount)
	p32(blob, 0x10, boneCount)
	p32(blob, 0x48, V0_SENTINEL)

	off := uint32(HEADER_SIZE)
	for iFrame := uint32(0); iFrame < frameCount; iFrame++ {
		for iBone := uint32(0); iBone < boneCount; iBone++ {
			pf32(blob, off, 1) // quat w
			pf32(blob, off+16, float32(iFrame))
			pf32(blob, off+20, float32(iBone))
			pf32(blob, off+28, 1)
			pf32(blob, off+32, 1)
			pf32(blob, off+36, 1)
			off += V0_KEYFRAME_SIZE
		}
	}
	return blob
}

func TestV0Decode(t *testing.T) {
	a, err := Decode(buildTestV0(3, 2), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !a.IsV0 || a.IsWorldSpace {
		t.Fatalf("V0 blob flags: IsV0=%v IsWorldSpace=%v", a.IsV0, a.IsWorldSpace)
	}
	if a.Fps != 15 || a.Duration() != 3.0/15.0 {
		t.Fatalf("fps %v duration %v", a.Fps, a.Duration())
	}

	for iFrame, pose := range a.Frames {
		for iBone := range pose {
			k := &pose[iBone]
			if k.Rotation.W != 1 {
				t.Errorf("frame %d bone %d: rotation %+v", iFrame, iBone, k.Rotation)
			}
			if k.Position[0] != float32(iFrame) || k.Position[1] != float32(iBone) {
				t.Errorf("frame %d bone %d: position %v", iFrame, iBone, k.Position)
			}
		}
	}
}

func TestV0Truncated(t *testing.T) {
	blob := buildTestV0(3, 2)

	a, err := Decode(blob[:len(blob)-1], nil)
	if cause(err) != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if a == nil || a.Frames != nil {
		t.Fatalf("expected metadata with nil frames, got %+v", a)
	}
}
