package vibeproxy

import (
	"math"
	"strings"
)

// gpt5Marker identifies the GPT-5 family, which rejects any temperature but 1.
const gpt5Marker = "gpt-5"

// ResolveTemperature returns the sampling temperature to send for model.
// GPT-5 models always get 1.0. Everything else gets the requested value, or 0
// when none was requested.
func ResolveTemperature(model string, requested *float32) float32 {
	if strings.Contains(strings.ToLower(model), gpt5Marker) {
		return 1.0
	}
	if requested != nil {
		return *requested
	}
	return 0
}

// Float32 returns a pointer to v, for Options.Temperature.
func Float32(v float32) *float32 {
	return &v
}

// wireTemperature adapts a resolved temperature to go-openai, which drops a
// zero temperature from the request body.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
