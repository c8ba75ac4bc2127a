package handwriting

import "testing"

func TestDecodeIndices(t *testing.T) {
	tests := []struct {
		name     string
		seq      []int
		alphabet string
		blank    int
		want     string
	}{
		{"collapse and drop blanks", []int{0, 0, 3, 1, 1, 1, 3, 3, 2}, "AB-", 3, "AB-"},
		{"blank separates repeats", []int{0, 3, 0}, "AB-", 3, "AA"},
		{"adjacent repeats collapse", []int{0, 0, 0}, "AB-", 3, "A"},
		{"all blank", []int{3, 3, 3}, "AB-", 3, ""},
		{"empty", nil, "AB-", 3, ""},
		{"out of range ignored", []int{0, 7, 1}, "AB-", 3, "AB"},
		{"leading blank", []int{3, 1}, "AB-", 3, "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeIndices(tt.seq, tt.alphabet, tt.blank); got != tt.want {
				t.Errorf("DecodeIndices() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeIndices_BlankAndRepeatInvariance(t *testing.T) {
	base := []int{0, 3, 1, 2}
	padded := []int{3, 3, 0, 0, 3, 3, 1, 1, 1, 2, 3}
	if DecodeIndices(base, "AB-", 3) != DecodeIndices(padded, "AB-", 3) {
		t.Errorf("decode changed under blank insertion and repetition")
	}
}

func oneHot(idx, width int) []float32 {
	row := make([]float32, width)
	row[idx] = 0.9
	for i := range row {
		if i != idx {
			row[i] = 0.1 / float32(width-1)
		}
	}
	return row
}

func TestDecode(t *testing.T) {
	blank := len(Alphabet)
	width := blank + 1
	spelled := []int{0, 0, blank, 26, 26, blank, 36}
	scores := make([][]float32, len(spelled))
	for i, s := range spelled {
		scores[i] = oneHot(s, width)
	}

	if got := Decode(scores, Alphabet); got != "A0-" {
		t.Errorf("Decode() = %q, want %q", got, "A0-")
	}
}

func TestSplitTimesteps(t *testing.T) {
	rows := SplitTimesteps([]float32{1, 2, 3, 4, 5, 6, 7}, 3)
	if len(rows) != 2 {
		t.Fatalf("expected 2 full rows, got %d", len(rows))
	}
	if rows[1][0] != 4 || rows[1][2] != 6 {
		t.Errorf("unexpected second row %v", rows[1])
	}
	if SplitTimesteps([]float32{1}, 0) != nil {
		t.Error("expected nil for zero width")
	}
}
