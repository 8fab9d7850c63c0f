package search

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/paperdex/paperdex/internal/engine"
)

// Clause boosts, highest-confidence first. An exact phrase in the title beats
// one in the data, which beats a loose per-page term match, which beats the
// typo-tolerant fallback.
const (
	boostNamePhrase = 15.0
	boostDataPhrase = 10.0
	boostMetaPhrase = 10.0
	boostPagePhrase = 10.0
	boostPageTerms  = 2.0
	boostFuzzy      = 1.0
)

// PlannerOptions tune the fuzzy fallback clause.
type PlannerOptions struct {
	Fuzziness   int
	FuzzyPrefix int
}

// DefaultPlannerOptions matches one edit of typo tolerance with a two
// character unedited prefix, so very short queries cannot fuzzy-match
// unrelated short words.
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{Fuzziness: 1, FuzzyPrefix: 2}
}

// BuildPlan constructs the composed engine query for one tenant-scoped search.
// A blank query yields an empty plan that never reaches the engine. The tenant
// filter is a non-scoring must-conjunct: ranking cannot surface another
// tenant's document no matter how the should-clauses score.
func BuildPlan(tenantID, rawQuery string, opts PlannerOptions) *engine.Plan {
	trimmed := strings.TrimSpace(rawQuery)
	if trimmed == "" || strings.TrimSpace(tenantID) == "" {
		return engine.EmptyPlan()
	}

	tenant := bleve.NewTermQuery(tenantID)
	tenant.SetField("tenantId")

	root := bleve.NewBooleanQuery()
	root.AddMust(tenant)
	for _, clause := range rankingClauses(trimmed, opts) {
		root.AddShould(clause)
	}
	root.SetMinShould(1)

	return &engine.Plan{
		Query:     root,
		Highlight: []string{"name", "dataText", "metaText", "text"},
	}
}

func rankingClauses(q string, opts PlannerOptions) []query.Query {
	namePhrase := bleve.NewMatchPhraseQuery(q)
	namePhrase.SetField("name")
	namePhrase.SetBoost(boostNamePhrase)

	dataPhrase := bleve.NewMatchPhraseQuery(q)
	dataPhrase.SetField("dataText")
	dataPhrase.SetBoost(boostDataPhrase)

	metaPhrase := bleve.NewMatchPhraseQuery(q)
	metaPhrase.SetField("metaText")
	metaPhrase.SetBoost(boostMetaPhrase)

	// Page text lives on its own sub-document per page, so a phrase can
	// never be satisfied by words spilling across a page boundary.
	pagePhrase := bleve.NewMatchPhraseQuery(q)
	pagePhrase.SetField("text")
	pagePhrase.SetBoost(boostPagePhrase)

	pageTerms := bleve.NewMatchQuery(q)
	pageTerms.SetField("text")
	pageTerms.SetOperator(query.MatchQueryOperatorAnd)
	pageTerms.SetBoost(boostPageTerms)

	clauses := []query.Query{namePhrase, dataPhrase, metaPhrase, pagePhrase, pageTerms}
	for _, field := range []string{"name", "dataText", "metaText", "aggregateText"} {
		fuzzy := bleve.NewMatchQuery(q)
		fuzzy.SetField(field)
		fuzzy.SetFuzziness(opts.Fuzziness)
		fuzzy.SetPrefix(opts.FuzzyPrefix)
		fuzzy.SetBoost(boostFuzzy)
		clauses = append(clauses, fuzzy)
	}
	return clauses
}
