package model

// ParamSpec declares the valid range and default for a synthesis knob.
// Values outside [Min, Max] are clamped — the same policy for every
// parameter, never rejected for some fields and clamped for others.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// ParamSpecs is the registry of supported synthesis parameters. Each entry
// corresponds to an optional template slot of the same role name.
var ParamSpecs = map[string]ParamSpec{
	"temperature":     {Name: "temperature", Min: 0, Max: 2, Default: 0.8},
	"speed":           {Name: "speed", Min: 0.5, Max: 2, Default: 1.0},
	"seed":            {Name: "seed", Min: 0, Max: 1000000, Default: 42},
	"cfg_scale":       {Name: "cfg_scale", Min: 0, Max: 10, Default: 1.3},
	"diffusion_steps": {Name: "diffusion_steps", Min: 1, Max: 100, Default: 20},
	"top_p":           {Name: "top_p", Min: 0, Max: 1, Default: 0.95},
}

// ClampParams merges the supplied parameters over the registry defaults,
// clamping each value into its declared range. Unknown parameter names are
// dropped. The returned map always contains every registered parameter.
func ClampParams(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(ParamSpecs))
	for name, spec := range ParamSpecs {
		v := spec.Default
		if supplied, ok := in[name]; ok {
			v = clamp(supplied, spec.Min, spec.Max)
		}
		out[name] = v
	}
	return out
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
