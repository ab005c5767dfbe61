// Package summarizer contains an interface of the post rationale provider.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Decentr-net/plutus/internal/entities"
)

//go:generate mockgen -destination=./mock/summarizer.go -package=mock -source=summarizer.go

// maxKeywords is a number of keywords mentioned in heuristic rationale.
const maxKeywords = 3

var keywords = []string{
	"airdrop", "mint", "nft", "launch", "frame", "base",
	"onchain", "token", "drop", "giveaway", "build", "ship",
}

// Summarizer returns one-line rationale of a post.
// Implementations never fail: the second value reports whether a model produced the text.
type Summarizer interface {
	Summarize(ctx context.Context, post entities.Post) (string, bool)
}

// Heuristic returns deterministic rationale built from keyword matches and engagement counts.
func Heuristic(p entities.Post) string {
	stats := fmt.Sprintf("(%d likes, %d recasts, %d replies)", p.Likes, p.Recasts, p.Replies)

	if found := matchKeywords(p.Text); len(found) > 0 {
		return fmt.Sprintf("Buzz around %s %s", strings.Join(found, ", "), stats)
	}

	if p.Author != "" {
		return fmt.Sprintf("Trending cast by @%s %s", p.Author, stats)
	}

	return fmt.Sprintf("Trending cast %s", stats)
}

func matchKeywords(text string) []string {
	tokens := make(map[string]struct{})
	for _, v := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[v] = struct{}{}
	}

	var out []string
	for _, k := range keywords {
		if _, ok := tokens[k]; ok {
			out = append(out, k)
			if len(out) == maxKeywords {
				break
			}
		}
	}

	return out
}
