package mass

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Wave is one rollout step of a gray strategy
type Wave struct {
	Pct float64 `json:"pct"`
}

// GrayStrategy describes a percentage based rollout
type GrayStrategy struct {
	Mode  string `json:"mode"`
	Waves []Wave `json:"waves"`
}

// ParseGrayStrategy decodes a gray_strategy document. Empty or absent waves mean a single wave of 100%.
func ParseGrayStrategy(raw []byte) (GrayStrategy, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return GrayStrategy{Mode: "percent"}, nil
	}

	var doc struct {
		Mode  string `json:"mode"`
		Waves []struct {
			Pct json.Number `json:"pct"`
		} `json:"waves"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return GrayStrategy{}, ValidationError("invalid gray_strategy: %v", err)
	}

	mode := strings.ToLower(strings.TrimSpace(doc.Mode))
	if mode != "" && mode != "percent" {
		return GrayStrategy{}, ValidationError("unsupported gray_strategy mode: %s", doc.Mode)
	}

	g := GrayStrategy{Mode: "percent", Waves: make([]Wave, 0, len(doc.Waves))}
	for i, w := range doc.Waves {
		pct, err := w.Pct.Float64()
		if w.Pct == "" {
			pct, err = 0, nil
		}
		if err != nil || math.IsNaN(pct) || math.IsInf(pct, 0) {
			return GrayStrategy{}, ValidationError("invalid pct for wave %d", i+1)
		}
		g.Waves = append(g.Waves, Wave{Pct: pct})
	}
	return g, nil
}

// AllocateWaves splits total recipients across waves by percentage.
// Every wave but the last gets round(total*pct/100), capped by what is left;
// the last wave takes the remainder so the counts always sum to total.
func AllocateWaves(total int, waves []Wave) []int {
	if total < 0 {
		total = 0
	}
	if len(waves) == 0 {
		return []int{total}
	}

	counts := make([]int, len(waves))
	remaining := total
	for i, w := range waves {
		if i == len(waves)-1 {
			counts[i] = remaining
			break
		}
		n := int(math.Round(float64(total) * w.Pct / 100))
		if n < 0 {
			n = 0
		}
		if n > remaining {
			n = remaining
		}
		counts[i] = n
		remaining -= n
	}
	return counts
}
