package features

import (
	"testing"

	"github.com/seu-repo/voz-visible/internal/domain"
)

func landmarks(n int, seed float32) []domain.Landmark {
	out := make([]domain.Landmark, n)
	for i := range out {
		v := seed + float32(i)
		out[i] = domain.Landmark{X: v, Y: v + 0.1, Z: v + 0.2, Visibility: v + 0.3}
	}
	return out
}

func TestBuild_EmptyOutputIsAllZeros(t *testing.T) {
	// Arrange
	b := NewBuilder()

	// Act
	vec := b.Build(&domain.DetectorOutput{})
	nilVec := b.Build(nil)

	// Assert
	if len(vec) != 258 {
		t.Fatalf("expected 258 values, got %d", len(vec))
	}
	for i := range vec {
		if vec[i] != 0 || nilVec[i] != 0 {
			t.Fatalf("expected zero at index %d", i)
		}
	}
}

func TestBuild_Layout(t *testing.T) {
	// Arrange
	b := NewBuilder()
	out := &domain.DetectorOutput{
		Pose:      landmarks(33, 1),
		RightHand: landmarks(21, 100),
		LeftHand:  landmarks(21, 200),
	}

	// Act
	vec := b.Build(out)

	// Assert
	if vec[0] != 1 || vec[3] != out.Pose[0].Visibility {
		t.Errorf("unexpected first pose landmark: %v", vec[:4])
	}
	if vec[131] != out.Pose[32].Visibility {
		t.Errorf("expected last pose visibility at 131, got %v", vec[131])
	}
	if vec[132] != 100 || vec[134] != out.RightHand[0].Z {
		t.Errorf("unexpected right hand start: %v", vec[132:135])
	}
	if vec[194] != out.RightHand[20].Z {
		t.Errorf("expected last right hand z at 194, got %v", vec[194])
	}
	if vec[195] != 200 || vec[257] != out.LeftHand[20].Z {
		t.Errorf("unexpected left hand values: %v %v", vec[195], vec[257])
	}
}

func TestBuild_HandsIgnoreVisibility(t *testing.T) {
	b := NewBuilder()
	out := &domain.DetectorOutput{RightHand: landmarks(1, 5)}

	vec := b.Build(out)

	if vec[135] != 0 {
		t.Errorf("expected visibility to be dropped for hands, got %v", vec[135])
	}
}

func TestBuild_PartialAndOversizedGroups(t *testing.T) {
	// Arrange
	b := NewBuilder()
	out := &domain.DetectorOutput{
		Pose:     landmarks(40, 1),
		LeftHand: landmarks(5, 7),
	}

	// Act
	vec := b.Build(out)

	// Assert
	for i := domain.RightHandOffset; i < domain.LeftHandOffset; i++ {
		if vec[i] != 0 {
			t.Fatalf("expected missing right hand to be zero at %d, got %v", i, vec[i])
		}
	}
	if vec[131] != out.Pose[32].Visibility {
		t.Errorf("expected pose truncated at 33 landmarks")
	}
	for i := domain.LeftHandOffset + 5*3; i < domain.FeatureCount; i++ {
		if vec[i] != 0 {
			t.Fatalf("expected padding zero at %d, got %v", i, vec[i])
		}
	}
}
