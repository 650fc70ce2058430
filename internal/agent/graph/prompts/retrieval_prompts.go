package prompts

import (
	"context"
)

const generateQuerySystemPrompt = `You are a smart keyword generator for a retrieval system over a books database.
Given a user's question, you must output exactly two fields:
1. vector_search_query: a concise and meaningful phrase suited for semantic (vector) search, containing the core topic.
2. fts_keyword: a minimal list of exact keywords for traditional (keyword) filtering, omitting any common words.
3. Language of the vector_search_query and fts_keyword must be the language of the user query.

Do NOT include any extra words or stop-words in the fts_keyword field.
Format your response as JSON with:
- vector_search_query: string
- fts_keyword: string`

const rerankSystemPrompt = `You are an expert information retrieval assistant. You will receive:

1. The original user query.
2. A numbered list of candidate products.

Your mission is to:

- Reorder the candidates so that the most relevant come first, optimizing for:
  - Semantic similarity to the query
  - Coverage of all key concepts in the query
  - Clarity, completeness, and usefulness of each description

- Determine whether any of the candidates actually match the intent of the query.
  - If yes, set "found": true; otherwise, "found": false.

Important:
- Output only a JSON object with exactly two keys: "ranking" (an array of the candidate numbers, best first, most relevant subset only) and "found" (a boolean).
- Candidate numbers are the 1-based indices shown in the list.
- Do not include any extra text, explanations, or metadata.`

// RenderGenerateQuerySystem renders the search-query derivation prompt.
func RenderGenerateQuerySystem(ctx context.Context) (string, error) {
	return renderSystem(ctx, generateQuerySystemPrompt, nil)
}

// RenderRerankSystem renders the rerank instruction prompt.
func RenderRerankSystem(ctx context.Context) (string, error) {
	return renderSystem(ctx, rerankSystemPrompt, nil)
}
