package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type extractEntity struct {
	EntityName        string `json:"entity_name" jsonschema_description:"Name of the entity, all letters capitalized"`
	EntityType        string `json:"entity_type" jsonschema_description:"One of the provided entity types"`
	EntityDescription string `json:"entity_description" jsonschema_description:"Everything the text states about the entity"`
}

type extractRelationship struct {
	SourceEntity            string  `json:"source_entity" jsonschema_description:"Name of the source entity"`
	TargetEntity            string  `json:"target_entity" jsonschema_description:"Name of the target entity"`
	RelationshipDescription string  `json:"relationship_description" jsonschema_description:"How the two entities are related according to the text"`
	RelationshipStrength    float64 `json:"relationship_strength" jsonschema_description:"Strength of the relationship between 0 and 1"`
}

type extractResponse struct {
	Entities      []extractEntity       `json:"entities" jsonschema_description:"Entities identified in the text"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationships identified in the text"`
}

func (g *GraphClient) extractFromUnit(ctx context.Context, u processUnit, sourceID string) (unitResult, error) {
	types := strings.Join(g.entityTypes, ",")
	systemPrompt := fmt.Sprintf(ai.ExtractPromptText, types, sourceID, types)

	var res extractResponse
	err := g.aiClient.GenerateCompletionWithFormat(
		ctx,
		"extract_entities_and_relationships",
		"Extract entities and relationships from a sales document.",
		u.text,
		&res,
		ai.WithSystemPrompts(systemPrompt),
	)
	if err != nil {
		return unitResult{}, err
	}
	return buildUnitResult(u, res)
}

func buildUnitResult(u processUnit, res extractResponse) (unitResult, error) {
	unit := &common.Unit{
		ID:       u.id,
		SourceID: u.sourceID,
		Start:    u.start,
		End:      u.end,
		Text:     u.text,
	}

	entities := make([]common.Entity, 0, len(res.Entities))
	byName := make(map[string]int, len(res.Entities))
	for _, e := range res.Entities {
		name := normalizeName(e.EntityName)
		if name == "" {
			continue
		}
		sourceID, err := gonanoid.New()
		if err != nil {
			return unitResult{}, fmt.Errorf("failed to generate source id: %w", err)
		}
		src := common.Source{ID: sourceID, Unit: unit, Description: e.EntityDescription}
		if idx, ok := byName[name]; ok {
			entities[idx].Sources = append(entities[idx].Sources, src)
			continue
		}
		id, err := gonanoid.New()
		if err != nil {
			return unitResult{}, fmt.Errorf("failed to generate entity id: %w", err)
		}
		byName[name] = len(entities)
		entities = append(entities, common.Entity{
			ID:      id,
			Name:    name,
			Type:    strings.ToUpper(strings.TrimSpace(e.EntityType)),
			Sources: []common.Source{src},
		})
	}

	relations := make([]common.Relationship, 0, len(res.Relationships))
	for _, r := range res.Relationships {
		si, sok := byName[normalizeName(r.SourceEntity)]
		ti, tok := byName[normalizeName(r.TargetEntity)]
		if !sok || !tok || si == ti {
			continue
		}
		id, err := gonanoid.New()
		if err != nil {
			return unitResult{}, fmt.Errorf("failed to generate relationship id: %w", err)
		}
		sourceID, err := gonanoid.New()
		if err != nil {
			return unitResult{}, fmt.Errorf("failed to generate source id: %w", err)
		}
		relations = append(relations, common.Relationship{
			ID:       id,
			Source:   &entities[si],
			Target:   &entities[ti],
			Strength: clampStrength(r.RelationshipStrength),
			Sources:  []common.Source{{ID: sourceID, Unit: unit, Description: r.RelationshipDescription}},
		})
	}

	return unitResult{unit: unit, entities: entities, relations: relations}, nil
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

func clampStrength(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
