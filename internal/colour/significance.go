package colour

import "math"

// minBlobSize is the smallest blob counted towards DimAvg and DimQty.
const minBlobSize = 4

// blobForest is a union-find over pixel positions. Roots carry the size of
// their component; other cells point towards their root.
type blobForest struct {
	parent []int32
	size   []int32
}

func newBlobForest(n int) *blobForest {
	return &blobForest{
		parent: make([]int32, n),
		size:   make([]int32, n),
	}
}

func (f *blobForest) add(i int) {
	f.parent[i] = int32(i)
	f.size[i] = 1
}

func (f *blobForest) find(i int) int {
	root := i
	for int(f.parent[root]) != root {
		root = int(f.parent[root])
	}
	for int(f.parent[i]) != root {
		next := int(f.parent[i])
		f.parent[i] = int32(root)
		i = next
	}
	return root
}

// attach adds cell i to the component rooted at root.
func (f *blobForest) attach(i, root int) {
	f.parent[i] = int32(root)
	f.size[root]++
}

// merge folds the component rooted at from into the one rooted at into.
func (f *blobForest) merge(into, from int) {
	f.parent[from] = int32(into)
	f.size[into] += f.size[from]
}

// analyzeDimensions labels 4-connected blobs of equal palette index and
// records, for every entry, its largest blob and the mean size and count of
// blobs of at least minBlobSize pixels.
func analyzeDimensions(index []int, width int, palette []Entry) {
	for i := range palette {
		palette[i].DimMax = 0
		palette[i].DimAvg = 0
		palette[i].DimQty = 0
	}
	if width <= 0 {
		return
	}

	forest := newBlobForest(len(index))
	for i, idx := range index {
		if idx == Transparent {
			continue
		}
		x := i % width

		top, left := -1, -1
		if i >= width && index[i-width] == idx {
			top = forest.find(i - width)
		}
		if x > 0 && index[i-1] == idx {
			left = forest.find(i - 1)
		}

		switch {
		case top >= 0 && left >= 0:
			if top != left {
				forest.merge(top, left)
			}
			forest.attach(i, top)
		case top >= 0:
			forest.attach(i, top)
		case left >= 0:
			forest.attach(i, left)
		default:
			forest.add(i)
		}
	}

	for i, idx := range index {
		if idx == Transparent || int(forest.parent[i]) != i {
			continue
		}
		item := &palette[idx]
		size := int(forest.size[i])
		item.DimMax = max(item.DimMax, size)
		if size >= minBlobSize {
			item.DimAvg += float64(size)
			item.DimQty++
		}
	}
	for i := range palette {
		if palette[i].DimQty > 0 {
			palette[i].DimAvg /= float64(palette[i].DimQty)
		}
	}
}

// calcFactor scores each entry by population and blob size relative to the
// palette average, weighted by how much of its population sits in
// substantial blobs.
func calcFactor(palette []Entry) {
	n := float64(len(palette))
	avgQty, avgMax := 0.0, 0.0
	for _, item := range palette {
		avgQty += math.Sqrt(float64(item.Qty)) / n
		avgMax += math.Sqrt(float64(item.DimMax)) / n
	}

	for i := range palette {
		item := &palette[i]
		if item.Qty == 0 {
			item.Factor = 0
			continue
		}
		qty := float64(item.Qty)
		factor := qty / (avgQty * avgQty)
		factor += float64(item.DimMax) / (avgMax * avgMax)
		coherence := item.DimAvg * float64(item.DimQty) / qty
		item.Factor = factor * coherence * coherence
	}
}

// filterByFactor keeps the entries whose factor exceeds threshold, in order.
func filterByFactor(palette []Entry, threshold float64) []Entry {
	result := make([]Entry, 0, len(palette))
	for _, item := range palette {
		if item.Factor > threshold {
			result = append(result, item)
		}
	}
	return result
}
