// Package validator checks item write requests and reports per-field
// failures.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/ingestion"
)

const (
	maxTitleLength = 1024
	maxBodyLength  = 1 << 20
	maxTerms       = 100
)

var allowedStatuses = map[string]bool{"": true, "publish": true, "draft": true, "private": true}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateSaveRequest checks lengths, status and term IDs. Categories may
// be empty; such items are stored but cannot be a reference item.
func ValidateSaveRequest(req *ingestion.SaveItemRequest) error {
	errs := make(map[string]string)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(req.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
	}
	if !allowedStatuses[req.Status] {
		errs["status"] = fmt.Sprintf("unknown status %q", req.Status)
	}
	if msg := checkTerms(req.Categories); msg != "" {
		errs["categories"] = msg
	}
	if msg := checkTerms(req.Tags); msg != "" {
		errs["tags"] = msg
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkTerms(terms []int64) string {
	if len(terms) > maxTerms {
		return fmt.Sprintf("at most %d terms allowed", maxTerms)
	}
	seen := make(map[int64]struct{}, len(terms))
	for _, t := range terms {
		if t < 1 {
			return fmt.Sprintf("term id %d must be positive", t)
		}
		if _, dup := seen[t]; dup {
			return fmt.Sprintf("term id %d listed twice", t)
		}
		seen[t] = struct{}{}
	}
	return ""
}
