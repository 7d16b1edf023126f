package perception

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"

	"dunenet.ai/internal/sim/world"
)

const (
	frameWidth  = 96
	frameHeight = 64
)

// SyntheticCapture renders the rover's forward view cone as a grayscale
// height image: rows are depth bands (top of frame = farthest), columns are
// angular bands, matching the layout the inference grid comes back in. The
// heightfield is immutable, so sampling it off the world goroutine is safe.
func SyntheticCapture(w *world.World, cfg Config) CaptureFunc {
	return func(_ context.Context, pose Pose) ([]byte, error) {
		img := image.NewGray(image.Rect(0, 0, frameWidth, frameHeight))
		amp := heightRange(w, pose, cfg)
		for row := 0; row < frameHeight; row++ {
			depth := cfg.DepthMin + (cfg.DepthMax-cfg.DepthMin)*(1-float64(row)/float64(frameHeight))
			for col := 0; col < frameWidth; col++ {
				angle := pose.Heading + (float64(col)/float64(frameWidth)-0.5)*cfg.AngularSpread
				wx := pose.X + math.Sin(angle)*depth
				wz := pose.Z + math.Cos(angle)*depth
				h := w.HeightAt(wx, wz)
				v := 0.5
				if amp > 0 {
					v = 0.5 + h/(2*amp)
				}
				img.SetGray(col, row, color.Gray{Y: toByte(v)})
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// heightRange samples a coarse grid over the cone to normalize brightness.
func heightRange(w *world.World, pose Pose, cfg Config) float64 {
	amp := 0.0
	for i := 0; i < 8; i++ {
		depth := cfg.DepthMin + (cfg.DepthMax-cfg.DepthMin)*float64(i)/7
		for j := 0; j < 8; j++ {
			angle := pose.Heading + (float64(j)/7-0.5)*cfg.AngularSpread
			wx := pose.X + math.Sin(angle)*depth
			wz := pose.Z + math.Cos(angle)*depth
			if h := math.Abs(w.HeightAt(wx, wz)); h > amp {
				amp = h
			}
		}
	}
	return amp
}

func toByte(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v * 255)
}
