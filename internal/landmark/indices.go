package landmark

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist         = 0
	ThumbCMC      = 1
	ThumbMCP      = 2
	ThumbIP       = 3
	ThumbTip      = 4
	IndexMCP      = 5
	IndexPIP      = 6
	IndexDIP      = 7
	IndexTip      = 8
	MiddleMCP     = 9
	MiddlePIP     = 10
	MiddleDIP     = 11
	MiddleTip     = 12
	RingMCP       = 13
	RingPIP       = 14
	RingDIP       = 15
	RingTip       = 16
	PinkyMCP      = 17
	PinkyPIP      = 18
	PinkyDIP      = 19
	PinkyTip      = 20
	NumHandPoints = 21
)

// Pose landmark indices (upper body subset).
const (
	PoseNose          = 0
	PoseLeftEye       = 2
	PoseRightEye      = 5
	PoseLeftEar       = 7
	PoseRightEar      = 8
	PoseMouthLeft     = 9
	PoseMouthRight    = 10
	PoseLeftShoulder  = 11
	PoseRightShoulder = 12
	PoseLeftWrist     = 15
	PoseRightWrist    = 16
	PoseLeftIndex     = 19
	PoseRightIndex    = 20
	PoseLeftThumb     = 21
	PoseRightThumb    = 22
	NumPosePoints     = 33
)

// NumFacePoints is the size of the face mesh with iris refinement.
const NumFacePoints = 478

// Connection is an edge between two landmark indices, used for drawing.
type Connection struct {
	From, To int
}

// HandConnections are the bones of the hand skeleton.
var HandConnections = []Connection{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{5, 9}, {9, 10}, {10, 11}, {11, 12},
	{9, 13}, {13, 14}, {14, 15}, {15, 16},
	{13, 17}, {0, 17}, {17, 18}, {18, 19}, {19, 20},
}

// PoseConnections are the edges of the pose skeleton.
var PoseConnections = []Connection{
	{0, 1}, {1, 2}, {2, 3}, {3, 7}, {0, 4}, {4, 5}, {5, 6}, {6, 8},
	{9, 10}, {11, 12}, {11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21},
	{17, 19}, {12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22}, {18, 20},
	{11, 23}, {12, 24}, {23, 24}, {23, 25}, {24, 26}, {25, 27}, {26, 28},
	{27, 29}, {28, 30}, {29, 31}, {30, 32}, {27, 31}, {28, 32},
}

// FaceOval is the closed outline of the face mesh, in drawing order.
var FaceOval = []int{
	10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288,
	397, 365, 379, 378, 400, 377, 152, 148, 176, 149, 150, 136,
	172, 58, 132, 93, 234, 127, 162, 21, 54, 103, 67, 109,
}

// FaceLips are the outer and inner lip contour points of the face mesh.
var FaceLips = []int{
	61, 146, 91, 181, 84, 17, 314, 405, 321, 375, 291,
	185, 40, 39, 37, 0, 267, 269, 270, 409,
	78, 95, 88, 178, 87, 14, 317, 402, 318, 324, 308,
	191, 80, 81, 82, 13, 312, 311, 310, 415,
}

// PoseMouth and PoseIndexFingers are the reference and candidate points of
// the pose-only detection mode.
var (
	PoseMouth        = []int{PoseMouthLeft, PoseMouthRight}
	PoseIndexFingers = []int{PoseLeftIndex, PoseRightIndex}
)

// FaceOvalConnections returns FaceOval as a closed loop of connections.
func FaceOvalConnections() []Connection {
	conns := make([]Connection, len(FaceOval))
	for i := range FaceOval {
		conns[i] = Connection{From: FaceOval[i], To: FaceOval[(i+1)%len(FaceOval)]}
	}
	return conns
}

// Region names a subset of the face mesh used as the proximity reference.
type Region string

const (
	RegionFace Region = "face"
	RegionLips Region = "lips"
	RegionOval Region = "oval"
)

// Indices returns the face-mesh indices of the region, or nil for the whole mesh.
func (r Region) Indices() []int {
	switch r {
	case RegionLips:
		return FaceLips
	case RegionOval:
		return FaceOval
	default:
		return nil
	}
}
