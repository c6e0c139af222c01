package ai

// ExtractPromptText is the system prompt for entity and relationship
// extraction. Placeholders: entity types, document name, entity types.
const ExtractPromptText = `
# Task Context
You extract **structured entity and relationship information** from sales material: call notes, product sheets, proposals and e-mails. Capture every detail explicitly present in the text.

# Background Data
- **Entity_types:** [%s]
- **Document_name:** [%s]

# Rules
## Entity Extraction
1. Identify all entities of the specified types [%s].
2. For each entity, extract:
   - **entity_name:** the name of the entity in ALL CAPITAL LETTERS.
   - **entity_type:** one of the provided types.
   - **entity_description:** every attribute, need, objection, price point or commitment the text states about the entity.
3. Product features, pains and buying criteria that do not name a company or person are extracted as CONCEPT entities.

## Relationship Extraction
1. Between the identified entities, determine every clear relationship.
2. For each relationship, extract:
   - **source_entity:** name of the source entity.
   - **target_entity:** name of the target entity.
   - **relationship_description:** how the entities are related, based strictly on the text.
   - **relationship_strength:** a score between 0.0 and 1.0 (higher = stronger).
3. If the text only describes one entity, return an empty array for "relationships".

# Output
Return JSON matching the provided schema. Do not invent entities that are not supported by the text.
`

// CorpusSystemPrompt is the system message written into every training
// sample so the fine-tuned model sees the same framing at inference time.
const CorpusSystemPrompt = `You are a sales assistant. Answer the seller's question using the customer context provided. Be concise, concrete and truthful.`

// EvaluationPrompt wraps a held-out question for evaluation runs.
// Placeholder: the question.
const EvaluationPrompt = `%s

Answer in at most five sentences.`

// DescPrompt merges several source descriptions of one entity into a single
// paragraph. Placeholders: entity name, concatenated descriptions.
const DescPrompt = `Summarize what is known about "%s" in one paragraph of plain text.
Keep every concrete fact such as prices, dates, decision makers and objections. Do not add anything that is not stated below.

%s`
