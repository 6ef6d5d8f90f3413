package walker

import (
	"sort"
	"time"

	"github.com/mdhender/cook/internal/fingerprint"
	"github.com/mdhender/cook/internal/graph"
	"github.com/mdhender/cook/internal/statcache"
)

// UpToDate decides whether node's targets are current against its
// ingredients (spec §4.7). A missing target is always stale. Past
// that, an mtime comparison is the first cut, but a target whose
// ingredients' combined content fingerprint has not changed since the
// last successful build is still up to date even when an ingredient's
// mtime moved forward: rebuilding it would touch nothing.
func UpToDate(g *graph.Graph, node *graph.RecipeNode, stats *statcache.Cache, fp fingerprint.Store) (bool, error) {
	var oldestTarget time.Time
	for i, fi := range node.Targets {
		f := g.Files[fi]
		if !stats.Exists(f.Name) {
			return false, nil
		}
		mt := stats.ModTime(f.Name)
		if i == 0 || mt.Before(oldestTarget) {
			oldestTarget = mt
		}
	}

	var hashes []string
	staleByMtime := false
	for _, e := range node.Edges {
		if e.Type&graph.EdgeExists != 0 {
			// An exists edge only asks that the ingredient be present;
			// its timestamp and content never make the target stale.
			if !stats.Exists(g.Files[e.File].Name) {
				return false, nil
			}
			continue
		}
		if e.Type&graph.EdgeStrict == 0 {
			continue // weak edges only order execution, never force a rebuild
		}
		f := g.Files[e.File]
		if !stats.Exists(f.Name) {
			return false, nil
		}
		if stats.ModTime(f.Name).After(oldestTarget) {
			staleByMtime = true
		}
		hash, err := fp.Fingerprint(f.Name)
		if err != nil {
			return false, err
		}
		hashes = append(hashes, hash)
	}

	if !staleByMtime {
		return true, nil
	}

	sort.Strings(hashes)
	combined := fingerprint.HashIngredients(hashes)
	targetName := g.Files[node.Targets[0]].Name
	return !fp.IngredientsFingerprintDiffers(targetName, combined), nil
}

// RecordBuilt updates fp's remembered ingredient fingerprint for node
// after a successful rebuild, so the next run's UpToDate call can use
// the phoney-up-to-date shortcut above.
func RecordBuilt(g *graph.Graph, node *graph.RecipeNode, fp fingerprint.Store) error {
	var hashes []string
	for _, e := range node.Edges {
		if e.Type&graph.EdgeStrict == 0 {
			continue
		}
		f := g.Files[e.File]
		hash, err := fp.Fingerprint(f.Name)
		if err != nil {
			return err
		}
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	combined := fingerprint.HashIngredients(hashes)
	targetName := g.Files[node.Targets[0]].Name
	fp.RecordIngredientsHash(targetName, combined)
	return nil
}
