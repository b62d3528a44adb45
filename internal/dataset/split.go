package dataset

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Split holds the three-way partition used for model building.
type Split struct {
	Train *Dataset
	Val   *Dataset
	Test  *Dataset
}

// StratifiedSplit partitions the dataset into train/val/test subsets keeping
// the class balance of each subset close to the source. Fractions apply to the
// whole dataset; the train subset receives the remainder.
func StratifiedSplit(ds *Dataset, valFraction, testFraction float64, seed uint64) (*Split, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("cannot split empty dataset")
	}
	if valFraction <= 0 || testFraction <= 0 || valFraction+testFraction >= 1 {
		return nil, fmt.Errorf("invalid split fractions val=%.2f test=%.2f", valFraction, testFraction)
	}

	rng := rand.New(rand.NewSource(seed))

	var positives, negatives []int
	for i, y := range ds.Y {
		if y == 1 {
			positives = append(positives, i)
		} else {
			negatives = append(negatives, i)
		}
	}
	rng.Shuffle(len(positives), func(i, j int) { positives[i], positives[j] = positives[j], positives[i] })
	rng.Shuffle(len(negatives), func(i, j int) { negatives[i], negatives[j] = negatives[j], negatives[i] })

	split := &Split{
		Train: newLike(ds),
		Val:   newLike(ds),
		Test:  newLike(ds),
	}
	for _, class := range [][]int{negatives, positives} {
		nVal := int(float64(len(class)) * valFraction)
		nTest := int(float64(len(class)) * testFraction)
		for i, idx := range class {
			var target *Dataset
			switch {
			case i < nVal:
				target = split.Val
			case i < nVal+nTest:
				target = split.Test
			default:
				target = split.Train
			}
			target.X = append(target.X, ds.X[idx])
			target.Y = append(target.Y, ds.Y[idx])
		}
	}

	for _, part := range []*Dataset{split.Train, split.Val, split.Test} {
		if part.Len() == 0 {
			return nil, fmt.Errorf("split produced an empty partition")
		}
	}
	return split, nil
}

func newLike(ds *Dataset) *Dataset {
	return &Dataset{Columns: append([]string(nil), ds.Columns...)}
}
