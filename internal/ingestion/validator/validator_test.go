package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/ingestion"
)

func TestValidateSaveRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       ingestion.SaveItemRequest
		badFields []string
	}{
		{"valid", ingestion.SaveItemRequest{Title: "Fox", Body: "quick fox", Categories: []int64{3}}, nil},
		{"no categories is fine", ingestion.SaveItemRequest{Title: "Fox"}, nil},
		{"missing title", ingestion.SaveItemRequest{Title: "  "}, []string{"title"}},
		{"long title", ingestion.SaveItemRequest{Title: strings.Repeat("a", maxTitleLength+1)}, []string{"title"}},
		{"bad status", ingestion.SaveItemRequest{Title: "Fox", Status: "archived"}, []string{"status"}},
		{"zero category", ingestion.SaveItemRequest{Title: "Fox", Categories: []int64{0}}, []string{"categories"}},
		{"duplicate tag", ingestion.SaveItemRequest{Title: "Fox", Tags: []int64{4, 4}}, []string{"tags"}},
		{"several", ingestion.SaveItemRequest{Status: "x", Tags: []int64{-1}}, []string{"title", "status", "tags"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSaveRequest(&tt.req)
			if len(tt.badFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if len(verr.Fields) != len(tt.badFields) {
				t.Errorf("fields = %v, want %v", verr.Fields, tt.badFields)
			}
			for _, f := range tt.badFields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("missing failure for %s in %v", f, verr.Fields)
				}
			}
		})
	}
}
