package domain

import (
	"fmt"
	"time"
)

// Domain identifies a topic area backed by its own semantic index
type Domain string

const (
	DomainFood     Domain = "food"
	DomainActivity Domain = "activity"
)

// Passage is a retrieved document fragment
type Passage struct {
	Text     string
	Metadata map[string]string
	Score    float64
}

// ConversationTurn is one prior message in the chat window
type ConversationTurn struct {
	Sender    string
	Text      string
	Timestamp *time.Time
}

// ClassificationKind is the outcome category of query classification
type ClassificationKind string

const (
	ClassificationNoMatch ClassificationKind = "no_match"
	ClassificationSingle  ClassificationKind = "single"
	ClassificationMulti   ClassificationKind = "multi"
)

// ClassificationResult holds the matched domains in lexicon order.
// Domains is empty for NoMatch, has one entry for Single and two or more for Multi.
type ClassificationResult struct {
	Kind    ClassificationKind
	Domains []Domain
}

// NoMatch returns the empty classification
func NoMatch() ClassificationResult {
	return ClassificationResult{Kind: ClassificationNoMatch}
}

// Single returns a classification selecting one domain
func Single(d Domain) ClassificationResult {
	return ClassificationResult{Kind: ClassificationSingle, Domains: []Domain{d}}
}

// Multi returns a classification selecting several domains
func Multi(domains ...Domain) ClassificationResult {
	return ClassificationResult{Kind: ClassificationMulti, Domains: domains}
}

// Includes reports whether d was selected
func (c ClassificationResult) Includes(d Domain) bool {
	for _, sel := range c.Domains {
		if sel == d {
			return true
		}
	}
	return false
}

func (c ClassificationResult) String() string {
	switch c.Kind {
	case ClassificationSingle, ClassificationMulti:
		return fmt.Sprintf("%s%v", c.Kind, c.Domains)
	default:
		return string(ClassificationNoMatch)
	}
}

// RetrievalBudget maps each domain to the number of passages to retrieve
type RetrievalBudget map[Domain]int

// OnNoMatchPolicy controls what happens when no domain term matches a query
type OnNoMatchPolicy string

const (
	// OnNoMatchReject refuses the query without retrieval or generation
	OnNoMatchReject OnNoMatchPolicy = "reject"
	// OnNoMatchBroaden retrieves from every domain
	OnNoMatchBroaden OnNoMatchPolicy = "broaden_to_all"
)

// DisclaimerMode controls who produces the closing medical disclaimer
type DisclaimerMode string

const (
	// DisclaimerModel instructs the model to write the disclaimer itself
	DisclaimerModel DisclaimerMode = "model"
	// DisclaimerAppend appends the fixed disclaimer after generation
	DisclaimerAppend DisclaimerMode = "append"
)

// RouteState tracks the progress of one query through the router
type RouteState string

const (
	StateReceived        RouteState = "received"
	StateClassified      RouteState = "classified"
	StateRejected        RouteState = "rejected"
	StateBudgetAllocated RouteState = "budget_allocated"
	StateRetrieved       RouteState = "retrieved"
	StateComposed        RouteState = "composed"
	StateGenerated       RouteState = "generated"
	StateDone            RouteState = "done"
	StateErrored         RouteState = "errored"
)
