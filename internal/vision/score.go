package vision

import (
	"github.com/darkepoch/mubot/internal/utils"
)

// ScoreMap holds one correlation score per template placement, row-major.
// Placement (x, y) is the top-left corner of the template on the frame.
type ScoreMap struct {
	Width  int
	Height int
	Scores []float64
}

func (s ScoreMap) At(x, y int) float64 {
	return s.Scores[y*s.Width+x]
}

func (s ScoreMap) Empty() bool {
	return s.Width <= 0 || s.Height <= 0 || len(s.Scores) < s.Width*s.Height
}

// Best returns the placement with the highest score. The first maximum in scan
// order wins.
func (s ScoreMap) Best() (utils.Position, float64, bool) {
	if s.Empty() {
		return utils.Position{}, 0, false
	}

	bestIdx := 0
	for i := 1; i < s.Width*s.Height; i++ {
		if s.Scores[i] > s.Scores[bestIdx] {
			bestIdx = i
		}
	}

	return utils.Position{X: bestIdx % s.Width, Y: bestIdx / s.Width}, s.Scores[bestIdx], true
}

// Peaks returns template centers whose score is >= threshold, in scan order.
// A candidate is dropped when its center is closer than half the template width
// and half the template height to an accepted one. At most limit results.
func (s ScoreMap) Peaks(threshold float64, tmplW, tmplH, limit int) []MatchResult {
	if s.Empty() || limit <= 0 {
		return nil
	}

	halfW, halfH := tmplW/2, tmplH/2
	accepted := make([]MatchResult, 0, limit)
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			score := s.Scores[y*s.Width+x]
			if score < threshold {
				continue
			}

			center := utils.Position{X: x + halfW, Y: y + halfH}
			tooClose := false
			for _, a := range accepted {
				if 2*utils.Abs(center.X-a.X) < tmplW && 2*utils.Abs(center.Y-a.Y) < tmplH {
					tooClose = true
					break
				}
			}
			if tooClose {
				continue
			}

			accepted = append(accepted, MatchResult{Position: center, Score: score})
			if len(accepted) == limit {
				return accepted
			}
		}
	}

	return accepted
}
