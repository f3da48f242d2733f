package anm

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/utils"
)

const CONSTANT_ENTRY_SIZE = 12

// constantTables hold the per-group flat value arrays referenced by
// constant-classified channels, in classification order.
type constantTables struct {
	Rotations []mgl32.Quat
	Positions []mgl32.Vec3
	Scales    []mgl32.Vec3
}

// parseConstantTables reads the constant arrays that follow the
// classification bitfield. Counts come from the classification
// tallies, the header does not store them separately.
func parseConstantTables(blob []byte, cursor uint32, c *classification) (*constantTables, uint32, error) {
	total := c.Rotation.ConstantCount + c.Position.ConstantCount + c.Scale.ConstantCount
	if int64(cursor)+int64(total)*CONSTANT_ENTRY_SIZE > int64(len(blob)) {
		return nil, cursor, errors.Wrapf(ErrTruncated, "constant tables need %d entries at 0x%x", total, cursor)
	}

	t := &constantTables{
		Rotations: make([]mgl32.Quat, c.Rotation.ConstantCount),
		Positions: make([]mgl32.Vec3, c.Position.ConstantCount),
		Scales:    make([]mgl32.Vec3, c.Scale.ConstantCount),
	}

	for i := range t.Rotations {
		// smallest-three, w rebuilt from the unit-norm constraint
		t.Rotations[i] = utils.QuatFromSmallestThree(
			f32(blob, cursor), f32(blob, cursor+4), f32(blob, cursor+8))
		cursor += CONSTANT_ENTRY_SIZE
	}

	for i := range t.Positions {
		t.Positions[i] = mgl32.Vec3{
			f32(blob, cursor) * POSITION_STORE_SCALE,
			f32(blob, cursor+4) * POSITION_STORE_SCALE,
			f32(blob, cursor+8) * POSITION_STORE_SCALE,
		}
		cursor += CONSTANT_ENTRY_SIZE
	}

	for i := range t.Scales {
		t.Scales[i] = mgl32.Vec3{f32(blob, cursor), f32(blob, cursor+4), f32(blob, cursor+8)}
		cursor += CONSTANT_ENTRY_SIZE
	}

	return t, cursor, nil
}
