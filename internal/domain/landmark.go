package domain

// Feature layout of a single frame. Pose landmarks carry visibility, hand
// landmarks do not.
const (
	PoseLandmarkCount     = 33
	PoseValuesPerLandmark = 4
	HandLandmarkCount     = 21
	HandValuesPerLandmark = 3

	PoseOffset      = 0
	RightHandOffset = PoseOffset + PoseLandmarkCount*PoseValuesPerLandmark      // 132
	LeftHandOffset  = RightHandOffset + HandLandmarkCount*HandValuesPerLandmark // 195
	FeatureCount    = LeftHandOffset + HandLandmarkCount*HandValuesPerLandmark  // 258
)

// Landmark is a detected keypoint. Visibility is only meaningful for pose
// landmarks and is ignored for hands.
type Landmark struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Z          float32 `json:"z"`
	Visibility float32 `json:"visibility,omitempty"`
}

// DetectorOutput is what the landmark detector found in one frame. Any group
// may be empty when nothing was detected for it.
type DetectorOutput struct {
	Pose      []Landmark `json:"pose_landmarks,omitempty"`
	RightHand []Landmark `json:"right_hand_landmarks,omitempty"`
	LeftHand  []Landmark `json:"left_hand_landmarks,omitempty"`
}

// Empty reports whether no landmark group was detected.
func (d *DetectorOutput) Empty() bool {
	return d == nil || (len(d.Pose) == 0 && len(d.RightHand) == 0 && len(d.LeftHand) == 0)
}

// FeatureVector is the fixed-length encoding consumed by the classifier.
type FeatureVector [FeatureCount]float32

// Frame is one encoded camera image.
type Frame struct {
	Data        []byte
	ContentType string
}
