package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/overlay-editor/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// modelAnswer accepts both the "faces" list and a single "primary" face
type modelAnswer struct {
	Faces       []types.FaceHit `json:"faces"`
	Primary     *types.FaceHit  `json:"primary"`
	Description string          `json:"description"`
}

// ParseAnalysisResult parses the JSON answer of a vision model.
// Unparseable answers yield a result without faces instead of an error.
func ParseAnalysisResult(raw string) *types.AnalysisResult {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return &types.AnalysisResult{Description: "Model returned non-JSON response"}
	}

	var answer modelAnswer
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return &types.AnalysisResult{Description: "Failed to parse model response"}
	}

	faces := answer.Faces
	if len(faces) == 0 && answer.Primary != nil {
		faces = []types.FaceHit{*answer.Primary}
	}

	// Drop "none" markers and degenerate boxes
	out := make([]types.FaceHit, 0, len(faces))
	for _, f := range faces {
		if strings.EqualFold(f.Label, "none") || f.Box.W <= 0 || f.Box.H <= 0 {
			continue
		}
		out = append(out, f)
	}

	return &types.AnalysisResult{Faces: out, Description: answer.Description}
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from a JSON response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
