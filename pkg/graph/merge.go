package graph

import (
	"github.com/OFFIS-RIT/kgops/pkg/common"
)

type edgeKey struct{ a, b string }

func undirected(a, b string) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// mergeEntitiesAndRelations folds the next unit's results into the graph
// built so far. Entities merge by name, relationships by their unordered
// endpoint pair with the strength averaged.
func mergeEntitiesAndRelations(
	entities []common.Entity,
	newEntities []common.Entity,
	relations []common.Relationship,
	newRelations []common.Relationship,
) ([]common.Entity, []common.Relationship) {
	index := make(map[string]int, len(entities)+len(newEntities))
	for i := range entities {
		index[entities[i].Name] = i
	}
	for _, e := range newEntities {
		if i, ok := index[e.Name]; ok {
			entities[i].Sources = append(entities[i].Sources, e.Sources...)
			if entities[i].Type == "" {
				entities[i].Type = e.Type
			}
			continue
		}
		index[e.Name] = len(entities)
		entities = append(entities, e)
	}

	// entities may have been reallocated; rebind every pointer.
	edges := make(map[edgeKey]int, len(relations)+len(newRelations))
	for i := range relations {
		relations[i].Source = &entities[index[relations[i].Source.Name]]
		relations[i].Target = &entities[index[relations[i].Target.Name]]
		edges[undirected(relations[i].Source.Name, relations[i].Target.Name)] = i
	}

	for _, r := range newRelations {
		if r.Source == nil || r.Target == nil {
			continue
		}
		si, sok := index[r.Source.Name]
		ti, tok := index[r.Target.Name]
		if !sok || !tok {
			continue
		}
		key := undirected(r.Source.Name, r.Target.Name)
		if j, ok := edges[key]; ok {
			relations[j].Sources = append(relations[j].Sources, r.Sources...)
			relations[j].Strength = (relations[j].Strength + r.Strength) / 2
			continue
		}
		r.Source = &entities[si]
		r.Target = &entities[ti]
		edges[key] = len(relations)
		relations = append(relations, r)
	}

	return entities, relations
}
