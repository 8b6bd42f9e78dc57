package vision

import (
	"errors"
	"image"
	"math"
)

var ErrTemplateTooLarge = errors.New("template larger than frame")

// NCC is a pure Go TM_CCOEFF_NORMED correlator. It is slower than the OpenCV
// backend and is used when OpenCV is not linked in.
type NCC struct{}

func (NCC) Correlate(frame, tmpl image.Image) (ScoreMap, error) {
	if frame == nil || tmpl == nil {
		return ScoreMap{}, errors.New("nil image")
	}

	fw, fh, f := grayPixels(frame)
	tw, th, t := grayPixels(tmpl)
	if tw == 0 || th == 0 {
		return ScoreMap{}, errors.New("empty template")
	}
	if tw > fw || th > fh {
		return ScoreMap{}, ErrTemplateTooLarge
	}

	n := float64(tw * th)
	var tSum float64
	for _, v := range t {
		tSum += v
	}
	tMean := tSum / n
	var tVar float64
	tz := make([]float64, len(t))
	for i, v := range t {
		tz[i] = v - tMean
		tVar += tz[i] * tz[i]
	}

	sum, sqSum := integrals(fw, fh, f)
	rowLen := fw + 1
	outW, outH := fw-tw+1, fh-th+1
	scores := make([]float64, outW*outH)

	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			a, b := y*rowLen+x, y*rowLen+x+tw
			c, d := (y+th)*rowLen+x, (y+th)*rowLen+x+tw
			wSum := sum[d] - sum[b] - sum[c] + sum[a]
			wSq := sqSum[d] - sqSum[b] - sqSum[c] + sqSum[a]
			wVar := wSq - wSum*wSum/n

			var cross float64
			for ty := 0; ty < th; ty++ {
				row := (y+ty)*fw + x
				trow := ty * tw
				for tx := 0; tx < tw; tx++ {
					cross += f[row+tx] * tz[trow+tx]
				}
			}

			denom := math.Sqrt(wVar * tVar)
			switch {
			case denom > 1e-9:
				scores[y*outW+x] = clampScore(cross / denom)
			case wVar <= 1e-9 && tVar <= 1e-9:
				scores[y*outW+x] = 1
			default:
				scores[y*outW+x] = 0
			}
		}
	}

	return ScoreMap{Width: outW, Height: outH, Scores: scores}, nil
}

func clampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// grayPixels converts img to BT.601 luma values in [0, 255].
func grayPixels(img image.Image) (int, int, []float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[y*w+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257
		}
	}
	return w, h, out
}

// integrals returns (w+1)x(h+1) summed area tables of values and squares.
func integrals(w, h int, px []float64) ([]float64, []float64) {
	rowLen := w + 1
	sum := make([]float64, rowLen*(h+1))
	sq := make([]float64, rowLen*(h+1))
	for y := 0; y < h; y++ {
		var rs, rq float64
		for x := 0; x < w; x++ {
			v := px[y*w+x]
			rs += v
			rq += v * v
			sum[(y+1)*rowLen+x+1] = sum[y*rowLen+x+1] + rs
			sq[(y+1)*rowLen+x+1] = sq[y*rowLen+x+1] + rq
		}
	}
	return sum, sq
}
