package score

import "github.com/cognicore/foodsignal/pkg/foodsignal/ingest"

// TopicKey identifies an article in a topic table. An empty Language makes
// the entry apply to the id in every language.
type TopicKey struct {
	Language  ingest.Language
	ArticleID string
}

// Topics maps articles to their topic probability.
type Topics map[TopicKey]float64

// Lookup returns the probability of an article, preferring the entry for its
// language over a language-independent one.
func (t Topics) Lookup(lang ingest.Language, id string) (float64, bool) {
	if p, ok := t[TopicKey{Language: lang, ArticleID: id}]; ok {
		return p, true
	}
	p, ok := t[TopicKey{ArticleID: id}]
	return p, ok
}
