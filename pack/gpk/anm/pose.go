package anm

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/velraen/gpk_browser/pack/gpk/skl"
)

// buildBasePose assembles the frame-invariant part of every pose:
// identity channels take the skeleton's rest world transform,
// constant channels take their table entry in classification order.
// Animated channels keep the fallback value until segment decoding
// overwrites them per frame.
func buildBasePose(c *classification, consts *constantTables, restPose []skl.JointRestPose, boneCount uint32) Pose {
	base := make(Pose, boneCount)

	for iBone := range base {
		k := &base[iBone]
		if iBone < len(restPose) {
			k.Rotation = restPose[iBone].WorldRotation
			k.Position = restPose[iBone].WorldPosition
			k.Scale = restPose[iBone].WorldScale
		} else {
			k.Rotation = mgl32.QuatIdent()
			k.Position = mgl32.Vec3{}
			k.Scale = mgl32.Vec3{1, 1, 1}
		}
	}

	iConst := 0
	for iBone, kind := range c.Rotation.Kinds {
		if kind == KIND_CONSTANT {
			base[iBone].Rotation = consts.Rotations[iConst]
			iConst++
		}
	}

	iConst = 0
	for iBone, kind := range c.Position.Kinds {
		if kind == KIND_CONSTANT {
			base[iBone].Position = consts.Positions[iConst]
			iConst++
		}
	}

	// When every bone has a constant scale entry the table is indexed
	// by bone id directly instead of allocation order. Two encoder
	// paths in the original tool disagree here, keep both.
	if uint32(len(consts.Scales)) == boneCount {
		for iBone, kind := range c.Scale.Kinds {
			if kind == KIND_CONSTANT {
				base[iBone].Scale = consts.Scales[iBone]
			}
		}
	} else {
		iConst = 0
		for iBone, kind := range c.Scale.Kinds {
			if kind == KIND_CONSTANT {
				base[iBone].Scale = consts.Scales[iConst]
				iConst++
			}
		}
	}

	return base
}
