package anm

import (
	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/pack/gpk/skl"
)

// V1 ("AC11") sub-header field offsets, relative to V1_SUBHEADER.
const (
	V1_OFF_SEGMENT_COUNT   = 0x20
	V1_OFF_ROT_ANIM_COUNT  = 0x24
	V1_OFF_POS_ANIM_COUNT  = 0x28
	V1_OFF_SCALE_ANIM_CNT  = 0x2C
	V1_OFF_TOTAL_ANIM_CNT  = 0x30
	V1_OFF_SECTION_OFFSETS = 0x44 + 16
)

// v1Header is the fixed part of the compressed sub-format: segment
// count, per-group animated channel counts and the four cumulative
// section offsets (segment table, bitfield, constants, animated
// channel headers), all relative to V1_BASE.
type v1Header struct {
	SegmentCount   uint32
	RotAnimCount   uint32
	PosAnimCount   uint32
	ScaleAnimCount uint32
	TotalAnimCount uint32
	SectionOffsets [4]uint32
}

func parseV1Header(blob []byte) (*v1Header, error) {
	need := int64(V1_SUBHEADER) + V1_OFF_SECTION_OFFSETS + 16
	if need > int64(len(blob)) {
		return nil, errors.Wrapf(ErrTruncated, "V1 sub-header needs %d bytes, have %d", need, len(blob))
	}

	h := &v1Header{
		SegmentCount:   u32(blob, V1_SUBHEADER+V1_OFF_SEGMENT_COUNT),
		RotAnimCount:   u32(blob, V1_SUBHEADER+V1_OFF_ROT_ANIM_COUNT),
		PosAnimCount:   u32(blob, V1_SUBHEADER+V1_OFF_POS_ANIM_COUNT),
		ScaleAnimCount: u32(blob, V1_SUBHEADER+V1_OFF_SCALE_ANIM_CNT),
		TotalAnimCount: u32(blob, V1_SUBHEADER+V1_OFF_TOTAL_ANIM_CNT),
	}
	for i := range h.SectionOffsets {
		h.SectionOffsets[i] = u32(blob, V1_SUBHEADER+V1_OFF_SECTION_OFFSETS+uint32(i)*4)
	}

	if h.TotalAnimCount != h.RotAnimCount+h.PosAnimCount+h.ScaleAnimCount {
		return nil, errors.Wrapf(ErrInconsistent, "animated channel total %d != %d+%d+%d",
			h.TotalAnimCount, h.RotAnimCount, h.PosAnimCount, h.ScaleAnimCount)
	}

	return h, nil
}

func (h *v1Header) section(i int, blob []byte) (uint32, error) {
	off := int64(V1_BASE) + int64(h.SectionOffsets[i])
	if off > int64(len(blob)) {
		return 0, errors.Wrapf(ErrTruncated, "section %d offset 0x%x out of blob", i, h.SectionOffsets[i])
	}
	return uint32(off), nil
}

func decodeV1(a *Animation, blob []byte, restPose []skl.JointRestPose) error {
	h, err := parseV1Header(blob)
	if err != nil {
		return err
	}

	if h.SectionOffsets[2] < h.SectionOffsets[1] {
		return errors.Wrapf(ErrTruncated, "bitfield section inverted: 0x%x..0x%x",
			h.SectionOffsets[1], h.SectionOffsets[2])
	}
	bitfieldStart, err := h.section(1, blob)
	if err != nil {
		return err
	}
	bitfieldEnd, err := h.section(2, blob)
	if err != nil {
		return err
	}

	c, err := parseClassification(blob[bitfieldStart:bitfieldEnd], a.BoneCount)
	if err != nil {
		return err
	}

	// the header-declared counts drive allocation, the bitfield is
	// the cross-check: a disagreement means the offsets are rotten
	// and any decoded pose would be garbage
	if uint32(c.Rotation.AnimatedCount) != h.RotAnimCount ||
		uint32(c.Position.AnimatedCount) != h.PosAnimCount ||
		uint32(c.Scale.AnimatedCount) != h.ScaleAnimCount {
		return errors.Wrapf(ErrInconsistent,
			"bitfield animated counts %d/%d/%d disagree with header %d/%d/%d",
			c.Rotation.AnimatedCount, c.Position.AnimatedCount, c.Scale.AnimatedCount,
			h.RotAnimCount, h.PosAnimCount, h.ScaleAnimCount)
	}

	consts, _, err := parseConstantTables(blob, bitfieldEnd, c)
	if err != nil {
		return err
	}

	animatedStart, err := h.section(3, blob)
	if err != nil {
		return err
	}
	headers, err := parseAnimatedHeaders(blob, animatedStart, int(h.TotalAnimCount))
	if err != nil {
		return err
	}

	segmentsStart, err := h.section(0, blob)
	if err != nil {
		return err
	}
	segments, err := parseSegmentTable(blob, segmentsStart, h.SegmentCount, a.FrameCount,
		h.RotAnimCount, h.PosAnimCount+h.ScaleAnimCount)
	if err != nil {
		return err
	}

	table := buildChannelTable(c)

	base := buildBasePose(c, consts, restPose, a.BoneCount)

	frames := make([]Pose, a.FrameCount)
	for iFrame := range frames {
		pose := make(Pose, a.BoneCount)
		copy(pose, base)
		frames[iFrame] = pose
	}

	for iSegment := range segments {
		streamEnd := uint32(len(blob))
		if iSegment+1 < len(segments) {
			streamEnd = V1_BASE + segments[iSegment+1].BodyOffset
		}
		if err := decodeSegmentBody(blob, &segments[iSegment], streamEnd, table, headers, frames); err != nil {
			return errors.Wrapf(err, "segment %d", iSegment)
		}
	}

	a.Frames = frames
	return nil
}
