// SPDX-License-Identifier: MIT
package scoring

import "readcheck/internal/log"

// rangeEpsilon treats narrower feature ranges as constant.
const rangeEpsilon = 1e-10

// MinMax rescales each feature to [0,1] against fixed per-index bounds.
type MinMax struct {
	Min []float64
	Max []float64
}

// TrainingMinMax returns the bounds observed over the training corpus for
// the 39-value {mean, delta, delta-delta} layout.
func TrainingMinMax() *MinMax {
	return &MinMax{
		Min: append([]float64(nil), trainingMin[:]...),
		Max: append([]float64(nil), trainingMax[:]...),
	}
}

// Normalize returns (x-min)/(max-min) clamped to [0,1] in a new slice.
// Constant ranges map to 0. A vector of the wrong length is returned as is.
func (m *MinMax) Normalize(features []float64) []float64 {
	if len(features) != len(m.Min) || len(features) != len(m.Max) {
		log.Warnf("scoring: cannot normalize %d features against %d bounds", len(features), len(m.Min))
		return features
	}
	out := make([]float64, len(features))
	for i, x := range features {
		r := m.Max[i] - m.Min[i]
		if r < rangeEpsilon {
			continue
		}
		out[i] = min(max((x-m.Min[i])/r, 0), 1)
	}
	return out
}

var trainingMin = [39]float64{
	// mean
	-414.423096, -80.241104, -166.024902, -51.319424, -129.907089, -53.916298, -72.291557,
	-52.450481, -51.326775, -46.281498, -38.478420, -33.771980, -34.021969,
	// delta
	-80.496361, -44.807404, -37.762089, -24.930162, -23.122988, -21.161055, -12.215257,
	-17.746891, -12.131637, -9.176967, -10.535486, -7.217824, -6.472048,
	// delta-delta
	-124.090370, -20.766090, -13.785049, -20.920406, -8.031868, -14.517561, -9.959176,
	-10.545534, -6.193355, -7.070988, -7.626590, -6.611162, -6.964625,
}

var trainingMax = [39]float64{
	// mean
	-124.297523, 217.845215, 75.084946, 119.203186, 34.772194, 50.537827, 31.583584,
	27.873722, 29.042034, 25.168472, 20.860155, 28.103399, 19.849575,
	// delta
	63.911774, 53.212135, 33.866341, 21.843294, 36.844193, 17.593575, 16.230043,
	11.392966, 10.353777, 9.431038, 10.551718, 8.934065, 9.334108,
	// delta-delta
	33.158714, 29.981518, 35.376286, 24.160303, 26.653269, 8.700697, 13.841467,
	10.550929, 10.368282, 6.424534, 9.235283, 7.907293, 10.498958,
}
