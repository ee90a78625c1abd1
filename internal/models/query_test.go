package models

import (
	"testing"
)

func TestAskRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *AskRequest
		wantErr bool
	}{
		{"empty question", &AskRequest{Question: ""}, true},
		{"whitespace question", &AskRequest{Question: "   \n"}, true},
		{"valid question", &AskRequest{Question: "what is the refund policy?"}, false},
		{"unknown context", &AskRequest{Question: "hi", Context: "archives"}, true},
		{"general context", &AskRequest{Question: "hi", Context: ContextGeneral}, false},
		{"sets default top_k", &AskRequest{Question: "x", TopK: 0}, false},
		{"caps top_k at 50", &AskRequest{Question: "x", TopK: 500}, false},
		{"sets default threshold", &AskRequest{Question: "x", SimilarityThreshold: 0}, false},
		{"caps threshold at 1", &AskRequest{Question: "x", SimilarityThreshold: 2.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.req.Context != ContextDocuments && tt.req.Context != ContextGeneral {
				t.Errorf("expected a valid context mode, got %q", tt.req.Context)
			}
			if tt.req.TopK <= 0 || tt.req.TopK > 50 {
				t.Errorf("expected top_k in (0,50], got %d", tt.req.TopK)
			}
			if tt.req.SimilarityThreshold <= 0 || tt.req.SimilarityThreshold > 1 {
				t.Errorf("expected threshold in (0,1], got %f", tt.req.SimilarityThreshold)
			}
		})
	}
}

func TestProcessingStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() || StatusProcessing.Terminal() {
		t.Error("pending and processing must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}
