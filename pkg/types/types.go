package types

// Box represents an axis-aligned rectangle in image pixel coordinates
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the area of the box
func (b Box) Area() float64 {
	return b.W * b.H
}

// Center returns the center point of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Empty reports whether the box has no area
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// NormalizedBox is a bounding box with coordinates in [0,1] range, as returned by vision models
type NormalizedBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ToPixels converts the normalized box to pixel coordinates for an image of the given size
func (n NormalizedBox) ToPixels(imgW, imgH int) Box {
	return Box{
		X: n.X * float64(imgW),
		Y: n.Y * float64(imgH),
		W: n.W * float64(imgW),
		H: n.H * float64(imgH),
	}
}

// Detection is a single face found by a detector
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// FaceHit is one face entry of a vision model answer
type FaceHit struct {
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Box        NormalizedBox `json:"box"`
}

// AnalysisResult contains the complete face analysis returned by a vision model
type AnalysisResult struct {
	Faces       []FaceHit `json:"faces"`
	Description string    `json:"description"`
}

// CanvasSize is the pixel size of the editing canvas
type CanvasSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
