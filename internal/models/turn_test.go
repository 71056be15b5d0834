package models

import (
	"reflect"
	"testing"
)

func TestPairTurns(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "how are you?"},
		{Role: RoleAssistant, Content: "fine"},
	}
	got := PairTurns(msgs)
	want := []Turn{
		{User: "hi", Assistant: "hello"},
		{User: "how are you?", Assistant: "fine"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("turns mismatch:\n got %#v\nwant %#v", got, want)
	}
}

func TestPairTurnsTrailingUser(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "still there?"},
	}
	got := PairTurns(msgs)
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[1].User != "still there?" || got[1].Assistant != "" {
		t.Fatalf("trailing user should pair with empty assistant, got %#v", got[1])
	}
}

func TestPairTurnsEmpty(t *testing.T) {
	if got := PairTurns(nil); len(got) != 0 {
		t.Fatalf("expected no turns, got %#v", got)
	}
}
