package domain

import "strings"

// Query is one retrieval request against a resolved tenant.
type Query struct {
	Text      string
	Tenant    TenantID
	Limit     int
	Threshold float64
}

// NormalizeText case-folds and whitespace-collapses query text. Cache keys are
// computed over the normalized form so trivially different spellings of the
// same question collide.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
