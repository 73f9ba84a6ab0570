package kafka

import "testing"

type sample struct {
	ItemID int64  `json:"item_id"`
	Action string `json:"action"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"item_id":12,"action":"updated"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ItemID != 12 || got.Action != "updated" {
		t.Errorf("DecodeJSON() = %+v", got)
	}

	if _, err := DecodeJSON[sample]([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed value")
	}
}
