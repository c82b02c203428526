package colour

// Transparent marks a pixel with alpha <= 127 in an index map.
const Transparent = -1

// quantize maps every pixel to the index of its nearest palette entry and
// recounts each entry's population from that final assignment.
func quantize(data []float64, palette []Entry) []int {
	for i := range palette {
		palette[i].Qty = 0
	}

	index := make([]int, len(data)/4)
	for i, j := 0, 0; j < len(index); i, j = i+4, j+1 {
		if data[i+3] <= alphaOpaque || len(palette) == 0 {
			index[j] = Transparent
			continue
		}
		idx := nearest(palette, pixelAt(data, i))
		index[j] = idx
		palette[idx].Qty++
	}
	return index
}
