package mass

// Placement assigns one recipient to a wave and a batch within that wave
type Placement struct {
	RecipientID string
	WaveNo      int
	BatchNo     int
}

// WaveSize is the number of recipients allocated to one wave
type WaveSize struct {
	WaveNo int `json:"wave_no"`
	Size   int `json:"size"`
}

// BuildSnapshots cuts recipients into contiguous wave slices of the given sizes
// and numbers fixed-size batches 1..N inside each wave. Empty waves produce nothing.
func BuildSnapshots(recipients []string, counts []int, batchSize int) []Placement {
	if batchSize <= 0 {
		batchSize = 1
	}

	out := make([]Placement, 0, len(recipients))
	offset := 0
	for i, n := range counts {
		if n <= 0 {
			continue
		}
		end := offset + n
		if end > len(recipients) {
			end = len(recipients)
		}
		for j, rid := range recipients[offset:end] {
			out = append(out, Placement{
				RecipientID: rid,
				WaveNo:      i + 1,
				BatchNo:     j/batchSize + 1,
			})
		}
		offset = end
		if offset >= len(recipients) {
			break
		}
	}
	return out
}

// WaveSizes pairs allocated counts with their 1-based wave numbers
func WaveSizes(counts []int) []WaveSize {
	out := make([]WaveSize, len(counts))
	for i, n := range counts {
		out[i] = WaveSize{WaveNo: i + 1, Size: n}
	}
	return out
}
