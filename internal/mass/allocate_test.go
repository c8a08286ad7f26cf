package mass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateWaves(t *testing.T) {
	tests := []struct {
		name  string
		total int
		pcts  []float64
		want  []int
	}{
		{"no waves is one full wave", 5, nil, []int{5}},
		{"percent split", 10, []float64{10, 20, 70}, []int{1, 2, 7}},
		{"half rounds away from zero", 7, []float64{50, 50}, []int{4, 3}},
		{"last wave takes remainder", 10, []float64{33, 33, 10}, []int{3, 3, 4}},
		{"overshoot capped by remaining", 3, []float64{100, 50}, []int{3, 0}},
		{"over 100 percent", 10, []float64{150, 10}, []int{10, 0}},
		{"negative percent clamps to zero", 10, []float64{-10, 100}, []int{0, 10}},
		{"zero total", 0, []float64{30, 70}, []int{0, 0}},
		{"single wave ignores its pct", 9, []float64{10}, []int{9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waves := make([]Wave, len(tt.pcts))
			for i, p := range tt.pcts {
				waves[i] = Wave{Pct: p}
			}
			got := AllocateWaves(tt.total, waves)
			assert.Equal(t, tt.want, got)

			sum := 0
			for _, n := range got {
				assert.GreaterOrEqual(t, n, 0)
				sum += n
			}
			assert.Equal(t, tt.total, sum)
		})
	}
}

func TestParseGrayStrategy(t *testing.T) {
	g, err := ParseGrayStrategy(nil)
	require.NoError(t, err)
	assert.Empty(t, g.Waves)

	g, err = ParseGrayStrategy([]byte(`{"mode":"percent","waves":[{"pct":30},{"pct":"70"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []Wave{{Pct: 30}, {Pct: 70}}, g.Waves)

	g, err = ParseGrayStrategy([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, g.Waves)

	_, err = ParseGrayStrategy([]byte(`{"mode":"canary"}`))
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = ParseGrayStrategy([]byte(`{"waves":[{"pct":"abc"}]}`))
	assert.Equal(t, KindValidation, KindOf(err))
}
