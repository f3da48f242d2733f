package anm

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/utils"
)

const SEGMENT_RECORD_SIZE = 16

type segment struct {
	FrameStart uint32
	FrameEnd   uint32 // exclusive

	AnimatedBitsFlag uint32
	BodyOffset       uint32 // relative to V1_BASE, points at the bit width array
}

// parseSegmentTable reads frame-range boundaries and per-segment
// records. Segments partition [0, frameCount) contiguously, every
// boundary must fall inside the clip and the last segment always
// ends at frameCount.
func parseSegmentTable(blob []byte, cursor uint32, count1 uint32, frameCount uint32,
	rotAnim uint32, otherAnim uint32) ([]segment, error) {

	if count1 == 0 {
		return nil, nil
	}
	if count1 > frameCount && frameCount > 0 {
		return nil, errors.Wrapf(ErrInconsistent, "segment count %d > frame count %d", count1, frameCount)
	}

	boundaries := []uint32{0}
	if count1 >= 2 {
		// count1 boundary values plus one sentinel
		need := int64(cursor) + (int64(count1)+1)*4
		if need > int64(len(blob)) {
			return nil, errors.Wrapf(ErrTruncated, "segment boundaries at 0x%x", cursor)
		}
		boundaries = make([]uint32, count1)
		for i := range boundaries {
			boundaries[i] = u32(blob, cursor)
			cursor += 4
		}
		cursor += 4 // sentinel
	}

	if boundaries[0] != 0 {
		return nil, errors.Wrapf(ErrInconsistent, "first segment starts at frame %d", boundaries[0])
	}
	for _, b := range boundaries[1:] {
		if b >= frameCount {
			return nil, errors.Wrapf(ErrInconsistent, "segment boundary %d >= frame count %d", b, frameCount)
		}
	}

	if int64(cursor)+int64(count1)*SEGMENT_RECORD_SIZE > int64(len(blob)) {
		return nil, errors.Wrapf(ErrTruncated, "segment records at 0x%x", cursor)
	}

	segments := make([]segment, count1)
	for i := range segments {
		s := &segments[i]
		s.AnimatedBitsFlag = u32(blob, cursor)
		rotCheck := u32(blob, cursor+4)
		otherCheck := u32(blob, cursor+8)
		s.BodyOffset = u32(blob, cursor+12)
		cursor += SEGMENT_RECORD_SIZE

		if rotCheck != rotAnim || otherCheck != otherAnim {
			return nil, errors.Wrapf(ErrInconsistent,
				"segment %d channel counts %d/%d disagree with header %d/%d",
				i, rotCheck, otherCheck, rotAnim, otherAnim)
		}

		s.FrameStart = boundaries[i]
		if i+1 < len(boundaries) {
			s.FrameEnd = boundaries[i+1]
			if s.FrameEnd <= s.FrameStart {
				return nil, errors.Wrapf(ErrInconsistent,
					"segment boundaries not increasing: %d then %d", s.FrameStart, s.FrameEnd)
			}
		} else {
			s.FrameEnd = frameCount
		}
	}

	return segments, nil
}

// decodeSegmentBody unpacks one segment's bitstream into the frames.
//
// The bitstream region is not stored explicitly: its end is the next
// segment's body start (or the end of the blob for the last segment)
// and its start is inferred by subtracting the expected byte length.
// The inferred region must still land past this segment's bit width
// array, anything else means the offsets lie.
func decodeSegmentBody(blob []byte, seg *segment, streamEnd uint32,
	table []channelTarget, headers []animatedChannelHeader, frames []Pose) error {

	if seg.AnimatedBitsFlag == 0 {
		return nil
	}

	widthsStart := V1_BASE + seg.BodyOffset
	widthsEnd := widthsStart + uint32(len(table))
	if int64(widthsEnd) > int64(len(blob)) || widthsEnd < widthsStart {
		return errors.Wrapf(ErrTruncated, "segment bit widths at 0x%x", widthsStart)
	}
	widths := blob[widthsStart:widthsEnd]

	bitsPerFrame := uint64(0)
	for _, w := range widths {
		if w > 32 {
			return errors.Wrapf(ErrInconsistent, "channel bit width %d > 32", w)
		}
		bitsPerFrame += uint64(w) * 3
	}

	segFrames := uint64(seg.FrameEnd - seg.FrameStart)
	expected := uint32((bitsPerFrame*segFrames + 7) / 8)

	if streamEnd > uint32(len(blob)) || expected > streamEnd {
		return errors.Wrapf(ErrInconsistent, "segment stream of %d bytes does not fit before 0x%x",
			expected, streamEnd)
	}
	streamStart := streamEnd - expected
	if streamStart < widthsEnd {
		return errors.Wrapf(ErrInconsistent,
			"inferred stream start 0x%x overlaps bit width array ending at 0x%x",
			streamStart, widthsEnd)
	}

	br := utils.NewBitReader(blob, streamStart)

	for iFrame := seg.FrameStart; iFrame < seg.FrameEnd; iFrame++ {
		pose := frames[iFrame]
		for iChannel := range table {
			h := &headers[iChannel]
			w := uint32(widths[iChannel])

			var v mgl32.Vec3
			if w == 0 {
				// constant inside this segment, no bits stored
				v = h.Offset
			} else {
				maxQ := float32(uint32(1)<<w - 1)
				for k := 0; k < 3; k++ {
					q := br.ReadLSB(w)
					v[k] = h.Offset[k] + (float32(q)/maxQ)*h.Scale[k]
				}
			}

			applySample(&pose[table[iChannel].Bone], table[iChannel].Kind, v)
		}
	}

	// the loop above consumes exactly bitsPerFrame*segFrames bits,
	// which rounds up to the inferred region by construction
	return nil
}

func applySample(k *Keyframe, attr channelAttribute, v mgl32.Vec3) {
	switch attr {
	case ATTR_ROTATION:
		k.Rotation = utils.QuatFromSmallestThree(v[0], v[1], v[2])
	case ATTR_POSITION:
		k.Position = v
	case ATTR_SCALE:
		k.Scale = v
	}
}
