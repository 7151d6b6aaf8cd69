package merger

import (
	"github.com/google/btree"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/floodgen/featurefile"
)

type keyedFeature struct {
	id      string
	feature *geojson.Feature
}

func lessKeyed(a, b keyedFeature) bool {
	return a.id < b.id
}

// Dedup keeps the first feature of every id and orders the result by id.
// Features without an id are appended in input order.
func Dedup(features []*geojson.Feature) []*geojson.Feature {
	tree := btree.NewG(32, lessKeyed)
	var anonymous []*geojson.Feature

	for _, f := range features {
		id := featurefile.FeatureID(f)
		if id == "" {
			anonymous = append(anonymous, f)
			continue
		}
		if tree.Has(keyedFeature{id: id}) {
			continue
		}
		tree.ReplaceOrInsert(keyedFeature{id: id, feature: f})
	}

	out := make([]*geojson.Feature, 0, tree.Len()+len(anonymous))
	tree.Ascend(func(k keyedFeature) bool {
		out = append(out, k.feature)
		return true
	})
	return append(out, anonymous...)
}
