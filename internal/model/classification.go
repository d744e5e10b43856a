// Package model defines the core domain models used throughout the application.
package model

import "errors"

// Validation errors for model types.
var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidRule        = errors.New("invalid category rule")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrInvalidExample     = errors.New("invalid training example")
	ErrInvalidDates       = errors.New("invalid dates")
)

// ClassificationStatus indicates how a transaction was categorized.
type ClassificationStatus string

// Classification status constants.
const (
	StatusUnclassified      ClassificationStatus = "UNCLASSIFIED"
	StatusClassifiedByRule  ClassificationStatus = "CLASSIFIED_BY_RULE"
	StatusClassifiedByModel ClassificationStatus = "CLASSIFIED_BY_MODEL"
	StatusUserModified      ClassificationStatus = "USER_MODIFIED"
)

// ClassificationSource names the stage that produced a result.
type ClassificationSource string

// Classification sources.
const (
	SourceRule  ClassificationSource = "rule"
	SourceModel ClassificationSource = "model"
	SourceNone  ClassificationSource = "none"
)

// Status maps a source onto the status stored with a transaction.
func (s ClassificationSource) Status() ClassificationStatus {
	switch s {
	case SourceRule:
		return StatusClassifiedByRule
	case SourceModel:
		return StatusClassifiedByModel
	default:
		return StatusUnclassified
	}
}

// ClassificationResult is the outcome of classifying one description.
type ClassificationResult struct {
	Description string
	Category    string
	Source      ClassificationSource
	Confidence  float64
	NeedsReview bool
}
