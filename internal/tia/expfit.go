// Package tia computes time-integrated activity images from a series of
// quantitative SPECT reconstructions.
package tia

import (
	"fmt"
	"math"
	"time"
)

// ExpFit fits y = A·exp(-b·t) to one voxel's time series by least squares
// in log space and integrates it over [0, ∞).
//
// The time points are fixed at construction; Evaluate is then a pure
// function safe for concurrent use.
type ExpFit struct {
	meanT float64
	dev   []float64 // t_i - meanT, seconds
	stt   float64   // Σ dev_i²
}

// NewExpFit configures a fit over the given times since administration.
func NewExpFit(timePoints []time.Duration) *ExpFit {
	n := len(timePoints)
	f := &ExpFit{dev: make([]float64, n)}
	for _, t := range timePoints {
		f.meanT += t.Seconds()
	}
	f.meanT /= float64(n)
	for i, t := range timePoints {
		f.dev[i] = t.Seconds() - f.meanT
		f.stt += f.dev[i] * f.dev[i]
	}
	return f
}

// N returns the number of time points.
func (f *ExpFit) N() int { return len(f.dev) }

// Evaluate returns A/b in pixel units·seconds, or 0 when any sample is not
// positive or the fitted curve does not decay.
// It panics if y does not hold one sample per time point.
func (f *ExpFit) Evaluate(y []float32) float32 {
	if len(y) != len(f.dev) {
		panic(fmt.Sprintf("tia: ExpFit.Evaluate: got %d samples for %d time points", len(y), len(f.dev)))
	}
	var buf [16]float64
	u := buf[:0]
	if len(y) > len(buf) {
		u = make([]float64, 0, len(y))
	}
	var meanU float64
	for _, v := range y {
		if v <= 0 {
			return 0
		}
		l := math.Log(float64(v))
		u = append(u, l)
		meanU += l
	}
	meanU /= float64(len(u))

	var num float64
	for i, l := range u {
		num += f.dev[i] * (l - meanU)
	}
	slope := num / f.stt
	if !(slope < 0) {
		return 0
	}
	intercept := meanU - slope*f.meanT
	return float32(math.Exp(intercept) / -slope)
}
