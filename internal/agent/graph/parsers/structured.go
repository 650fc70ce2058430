package parsers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bookworm-assistant/server/internal/agent/model"
	errx "github.com/bookworm-assistant/server/internal/core/error"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// basic safety limits to avoid pathological model outputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxErrSnippet = 200       // limit error snippet size
)

// ExtractJSON locates the structured payload inside raw model output. It
// strips markdown code fences and surrounding prose, returning the first
// top-level JSON object or array found.
func ExtractJSON(content string) (string, error) {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "parsers").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	content = strings.TrimSpace(content)

	// Drop a wrapping ```json ... ``` fence when present.
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.Index(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return "", fmt.Errorf("no json payload in %q", safeSnippet(content))
	}
	opening := content[start]
	var closing byte = '}'
	if opening == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(content, closing)
	if end <= start {
		return "", fmt.Errorf("unterminated json payload in %q", safeSnippet(content))
	}
	return content[start : end+1], nil
}

// ParseRouter parses the intent classification output. The schema is a
// single enum field; any value outside the closed set is a turn-fatal error
// so the dialogue engine never proceeds down an undefined edge.
func ParseRouter(content string) (model.Intent, error) {
	raw, err := ExtractJSON(content)
	if err != nil {
		// tolerate a bare enum token without JSON framing
		if intent, perr := model.ParseIntent(content); perr == nil {
			return intent, nil
		}
		return "", errx.New(err, http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}

	var out struct {
		Router string `json:"router"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", errx.New(fmt.Errorf("router payload: %w", err), http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}

	intent, err := model.ParseIntent(out.Router)
	if err != nil {
		return "", errx.New(err, http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}
	return intent, nil
}

// ParseOrderInfo parses the order-field extraction output: three integer
// fields with 0 as the explicit unknown sentinel. Models occasionally emit
// numbers as strings or floats, so values are coerced before validation.
func ParseOrderInfo(content string) (model.OrderInfo, error) {
	var info model.OrderInfo

	raw, err := ExtractJSON(content)
	if err != nil {
		return info, errx.New(err, http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return info, errx.New(fmt.Errorf("order payload: %w", err), http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}

	info.UserID = coerceField(out["user_id"])
	info.ProductID = coerceField(out["product_id"])
	info.Quantity = coerceField(out["quantity"])
	return info, nil
}

// ParseSearchQueries parses the query-generation output: a semantic phrase
// for vector search and a minimal keyword set for lexical search.
func ParseSearchQueries(content string) (model.SearchQueries, error) {
	var q model.SearchQueries

	raw, err := ExtractJSON(content)
	if err != nil {
		return q, errx.New(err, http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return q, errx.New(fmt.Errorf("query payload: %w", err), http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}

	q.VectorQuery = strings.TrimSpace(q.VectorQuery)
	q.Keyword = strings.TrimSpace(q.Keyword)
	if q.VectorQuery == "" && q.Keyword == "" {
		return q, errx.New(fmt.Errorf("empty search queries"), http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}
	return q, nil
}

// ParseRerank parses the reranker output: a 1-indexed ranking over the
// candidate list plus a relevance flag. Out-of-range or duplicate indices
// are dropped rather than failing the whole result.
func ParseRerank(content string, candidateCount int) (ranking []int, found bool, err error) {
	raw, jerr := ExtractJSON(content)
	if jerr != nil {
		return nil, false, errx.New(jerr, http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}

	var out struct {
		Ranking []any `json:"ranking"`
		Found   bool  `json:"found"`
	}
	if uerr := json.Unmarshal([]byte(raw), &out); uerr != nil {
		return nil, false, errx.New(fmt.Errorf("rerank payload: %w", uerr), http.StatusUnprocessableEntity, errx.ClassifierErrorMessage)
	}

	seen := make(map[int]bool, candidateCount)
	for _, v := range out.Ranking {
		idx := coerceInt(v)
		if idx < 1 || idx > candidateCount || seen[idx] {
			continue
		}
		seen[idx] = true
		ranking = append(ranking, idx)
	}
	return ranking, out.Found, nil
}

// coerceInt converts a decoded JSON value into an int, treating anything
// unparseable as the unknown sentinel.
func coerceInt(v any) int {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return model.FieldUnknown
		}
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return model.FieldUnknown
		}
		return parsed
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return model.FieldUnknown
		}
		return int(parsed)
	default:
		return model.FieldUnknown
	}
}

// coerceField narrows a decoded JSON value to the order-field domain: ids
// and quantities are positive integers, with 0 as the explicit unknown
// sentinel. A negative number is never a valid field value and collapses to
// unknown rather than flowing into an order.
func coerceField(v any) int {
	n := coerceInt(v)
	if n < 0 {
		return model.FieldUnknown
	}
	return n
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
