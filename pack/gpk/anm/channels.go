package anm

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const ANIMATED_HEADER_SIZE = 24

// animatedChannelHeader carries the dequantization parameters of one
// animated channel: value = Offset + (q / maxQ) * Scale per component.
type animatedChannelHeader struct {
	Offset mgl32.Vec3
	Scale  mgl32.Vec3
}

// parseAnimatedHeaders reads the per-animated-channel dequantization
// records, ordered rotation channels, position channels, scale
// channels (bone-ascending inside each group).
func parseAnimatedHeaders(blob []byte, cursor uint32, total int) ([]animatedChannelHeader, error) {
	if int64(cursor)+int64(total)*ANIMATED_HEADER_SIZE > int64(len(blob)) {
		return nil, errors.Wrapf(ErrTruncated, "animated headers need %d records at 0x%x", total, cursor)
	}

	headers := make([]animatedChannelHeader, total)
	for i := range headers {
		headers[i] = animatedChannelHeader{
			Offset: mgl32.Vec3{f32(blob, cursor), f32(blob, cursor+4), f32(blob, cursor+8)},
			Scale:  mgl32.Vec3{f32(blob, cursor+12), f32(blob, cursor+16), f32(blob, cursor+20)},
		}
		cursor += ANIMATED_HEADER_SIZE
	}
	return headers, nil
}

type channelTarget struct {
	Bone uint32
	Kind channelAttribute
}

type channelAttribute uint8

const (
	ATTR_ROTATION channelAttribute = iota
	ATTR_POSITION
	ATTR_SCALE
)

// buildChannelTable maps a flat animated channel index back to the
// bone and attribute it drives. Built once per decode.
func buildChannelTable(c *classification) []channelTarget {
	table := make([]channelTarget, 0,
		c.Rotation.AnimatedCount+c.Position.AnimatedCount+c.Scale.AnimatedCount)

	groups := [3]struct {
		kinds []ChannelKind
		attr  channelAttribute
	}{
		{c.Rotation.Kinds, ATTR_ROTATION},
		{c.Position.Kinds, ATTR_POSITION},
		{c.Scale.Kinds, ATTR_SCALE},
	}

	for _, g := range groups {
		for iBone, kind := range g.kinds {
			if kind == KIND_ANIMATED {
				table = append(table, channelTarget{Bone: uint32(iBone), Kind: g.attr})
			}
		}
	}
	return table
}
