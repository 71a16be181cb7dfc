package usecase

import (
	"strings"

	"github.com/example/foodsnap/internal/apperrors"
	"github.com/example/foodsnap/internal/recognition"
)

// confidenceThreshold applies only when the upstream reports no zone at all.
const confidenceThreshold = 0.5

var notFoodZones = map[string]struct{}{
	"not_food":        {},
	"unsupported":     {},
	"non_food_object": {},
	"text_document":   {},
}

var lowConfidenceZones = map[string]struct{}{
	"low_confidence":     {},
	"uncertain":          {},
	"partial_visibility": {},
}

// classifyEmptyResult maps a successful-but-empty recognition onto a contract
// code. Zone classification always takes priority over the numeric
// confidence: a present-but-unmatched zone is an explicit upstream verdict
// and must not be overridden by a near-miss confidence value.
func classifyEmptyResult(payload *recognition.Payload) string {
	zone := strings.ToLower(strings.TrimSpace(payload.Metadata.Zone))
	if zone != "" {
		if _, ok := notFoodZones[zone]; ok {
			return apperrors.CodeUnsupportedContent
		}
		if _, ok := lowConfidenceZones[zone]; ok {
			return apperrors.CodeLowConfidence
		}
		return apperrors.CodeEmptyResult
	}
	if payload.Metadata.Confidence != nil && *payload.Metadata.Confidence < confidenceThreshold {
		return apperrors.CodeLowConfidence
	}
	return apperrors.CodeEmptyResult
}
