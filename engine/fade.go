package engine

import (
	"fmt"
	"math"
)

// Curve maps fade progress t in [0,1] to a gain fraction in [0,1].
// A fade-in uses the curve directly; the matching fade-out uses 1-curve(t),
// so the pair always sums to 1 for curves designed that way.
type Curve func(t float64) float64

// Linear fades proportionally to elapsed time.
func Linear(t float64) float64 {
	return clamp01(t)
}

// EqualPower is the sin^2/cos^2 pair the desktop player shipped with:
// the outgoing 1-sin^2 = cos^2, so the two gains sum to exactly 1 at
// every instant of the fade.
func EqualPower(t float64) float64 {
	s := math.Sin(clamp01(t) * math.Pi / 2)
	return s * s
}

// Smoothstep is the 3t^2-2t^3 ease curve.
func Smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

// CurveByName resolves a configured curve name.
func CurveByName(name string) (Curve, error) {
	switch name {
	case "linear":
		return Linear, nil
	case "equalpower":
		return EqualPower, nil
	case "smoothstep":
		return Smoothstep, nil
	default:
		return nil, fmt.Errorf("unknown fade curve %q", name)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// envelope is a gain trajectory between two levels over a fixed number of
// frames. elapsed advances one step per frame consumed, so a paused engine
// freezes the fade along with the audio.
type envelope struct {
	start   float64
	end     float64
	length  int
	elapsed int
	curve   Curve
}

// step advances the envelope one frame and returns the gain for it,
// clamped to [0,1].
func (e *envelope) step() float64 {
	if e.length <= 0 {
		return clamp01(e.end)
	}
	if e.elapsed < e.length {
		e.elapsed++
	}
	t := float64(e.elapsed) / float64(e.length)
	return clamp01(e.start + (e.end-e.start)*e.curve(t))
}

// done reports whether the trajectory has reached its end gain.
func (e *envelope) done() bool {
	return e.length <= 0 || e.elapsed >= e.length
}
