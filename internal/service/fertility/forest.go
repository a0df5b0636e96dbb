package fertility

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Forest is a random forest classifier exported from scikit-learn as JSON.
// Each node either splits on Feature at Threshold or, when Left is -1, is a
// leaf whose Value holds per-class sample counts.
type Forest struct {
	NFeatures int     `json:"n_features"`
	Classes   []int   `json:"classes"`
	Trees     []*Tree `json:"trees"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

// LoadForest reads and validates a forest export from path.
func LoadForest(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fertility model: %w", err)
	}
	defer f.Close()
	return DecodeForest(f)
}

// DecodeForest parses a forest export.
func DecodeForest(r io.Reader) (*Forest, error) {
	var forest Forest
	if err := json.NewDecoder(r).Decode(&forest); err != nil {
		return nil, fmt.Errorf("decode fertility model: %w", err)
	}
	if err := forest.validate(); err != nil {
		return nil, fmt.Errorf("invalid fertility model: %w", err)
	}
	return &forest, nil
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return errors.New("no trees")
	}
	if len(f.Classes) == 0 {
		return errors.New("no classes")
	}
	for ti, tree := range f.Trees {
		if tree == nil || len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Left == -1 {
				if len(n.Value) != len(f.Classes) {
					return fmt.Errorf("tree %d node %d: leaf has %d values for %d classes", ti, ni, len(n.Value), len(f.Classes))
				}
				continue
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
			if n.Feature < 0 || (f.NFeatures > 0 && n.Feature >= f.NFeatures) {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
		}
	}
	return nil
}

// Proba averages the normalized leaf distributions of every tree.
func (f *Forest) Proba(x []float64) ([]float64, error) {
	if f.NFeatures > 0 && len(x) != f.NFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", f.NFeatures, len(x))
	}
	out := make([]float64, len(f.Classes))
	for _, tree := range f.Trees {
		leaf, err := tree.leaf(x)
		if err != nil {
			return nil, err
		}
		var total float64
		for _, v := range leaf.Value {
			total += v
		}
		if total == 0 {
			continue
		}
		for i, v := range leaf.Value {
			out[i] += v / total
		}
	}
	for i := range out {
		out[i] /= float64(len(f.Trees))
	}
	return out, nil
}

// Predict returns the class label with the highest mean probability. Ties go
// to the lower index.
func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.Proba(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return f.Classes[best], nil
}

func (t *Tree) leaf(x []float64) (*Node, error) {
	i := 0
	// children always sit after their parent, so the walk terminates
	for {
		n := &t.Nodes[i]
		if n.Left == -1 {
			return n, nil
		}
		if n.Feature >= len(x) {
			return nil, fmt.Errorf("feature %d out of range", n.Feature)
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
