package handwriting

import "strings"

// Alphabet is the character set of the bundled handwriting model. The blank
// symbol sits at index len(Alphabet).
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"

// Decode performs greedy CTC decoding of a timesteps x symbols score matrix.
// The blank symbol is len(alphabet).
func Decode(scores [][]float32, alphabet string) string {
	seq := make([]int, len(scores))
	for t, row := range scores {
		seq[t] = argmax(row)
	}
	return DecodeIndices(seq, alphabet, len(alphabet))
}

// DecodeIndices collapses runs of the same symbol, drops blanks and maps the
// survivors through alphabet. Indices outside the alphabet are ignored.
func DecodeIndices(seq []int, alphabet string, blank int) string {
	var b strings.Builder
	prev := blank
	for _, s := range seq {
		if s != prev && s != blank && s >= 0 && s < len(alphabet) {
			b.WriteByte(alphabet[s])
		}
		prev = s
	}
	return b.String()
}

// SplitTimesteps reshapes a flat row-major output tensor into rows of width symbols.
func SplitTimesteps(data []float32, symbols int) [][]float32 {
	if symbols <= 0 {
		return nil
	}
	rows := make([][]float32, 0, len(data)/symbols)
	for i := 0; i+symbols <= len(data); i += symbols {
		rows = append(rows, data[i:i+symbols])
	}
	return rows
}

func argmax(row []float32) int {
	best := -1
	for i, v := range row {
		if best < 0 || v > row[best] {
			best = i
		}
	}
	return best
}
