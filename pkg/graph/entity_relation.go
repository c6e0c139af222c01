package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/common"

	"golang.org/x/sync/errgroup"
)

func joinDescriptions(sources []common.Source) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		if d := strings.TrimSpace(s.Description); d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (g *GraphClient) generateDescription(ctx context.Context, name string, desc string) (string, error) {
	res, err := g.aiClient.GenerateCompletion(ctx, fmt.Sprintf(ai.DescPrompt, name, desc))
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(res), " "), nil
}

// summarizeDescriptions fills Description for entities and relationships
// seen in more than one unit. Single-source items keep the raw source text.
func (g *GraphClient) summarizeDescriptions(ctx context.Context, entities []common.Entity, relations []common.Relationship) error {
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)

	for i := range entities {
		if len(entities[i].Sources) < 2 {
			continue
		}
		eg.Go(func() error {
			d, err := g.generateDescription(gCtx, entities[i].Name, joinDescriptions(entities[i].Sources))
			if err != nil {
				return fmt.Errorf("failed to describe entity %s: %w", entities[i].Name, err)
			}
			entities[i].Description = d
			return nil
		})
	}
	for i := range relations {
		if len(relations[i].Sources) < 2 {
			continue
		}
		eg.Go(func() error {
			name := fmt.Sprintf("%s -> %s", relations[i].Source.Name, relations[i].Target.Name)
			d, err := g.generateDescription(gCtx, name, joinDescriptions(relations[i].Sources))
			if err != nil {
				return fmt.Errorf("failed to describe relationship %s: %w", name, err)
			}
			relations[i].Description = d
			return nil
		})
	}
	return eg.Wait()
}
