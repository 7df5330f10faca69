package features

import (
	"github.com/seu-repo/voz-visible/internal/domain"
)

// Builder turns detector output into the fixed classifier layout.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build never fails. Missing groups stay zero and extra landmarks beyond the
// expected count are dropped.
func (b *Builder) Build(out *domain.DetectorOutput) domain.FeatureVector {
	var vec domain.FeatureVector
	if out == nil {
		return vec
	}

	for i, lm := range out.Pose {
		if i >= domain.PoseLandmarkCount {
			break
		}
		base := domain.PoseOffset + i*domain.PoseValuesPerLandmark
		vec[base] = lm.X
		vec[base+1] = lm.Y
		vec[base+2] = lm.Z
		vec[base+3] = lm.Visibility
	}

	fillHand(&vec, domain.RightHandOffset, out.RightHand)
	fillHand(&vec, domain.LeftHandOffset, out.LeftHand)

	return vec
}

func fillHand(vec *domain.FeatureVector, offset int, hand []domain.Landmark) {
	for i, lm := range hand {
		if i >= domain.HandLandmarkCount {
			return
		}
		base := offset + i*domain.HandValuesPerLandmark
		vec[base] = lm.X
		vec[base+1] = lm.Y
		vec[base+2] = lm.Z
	}
}
