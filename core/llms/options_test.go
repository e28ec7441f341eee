package llms

import "testing"

func TestNewRequestUsesDefaultGenerationParams(t *testing.T) {
	request := NewRequest()

	if request.Params != DefaultGenerationParams() {
		t.Fatalf("expected default params %+v, got %+v", DefaultGenerationParams(), request.Params)
	}
}

func TestWithTurnsCopiesSlice(t *testing.T) {
	turns := []Turn{NewUserTurn("こんにちは")}
	request := NewRequest(WithTurns(turns), WithPersona("persona"))

	turns[0].Text = "changed"
	if request.Turns[0].Text != "こんにちは" {
		t.Fatalf("expected request turns to be isolated from caller, got %q", request.Turns[0].Text)
	}
	if request.Persona != "persona" {
		t.Fatalf("expected persona %q, got %q", "persona", request.Persona)
	}
}

func TestNewTurnAssignsUniqueIDs(t *testing.T) {
	first := NewUserTurn("a")
	second := NewModelTurn("b")

	if first.ID == "" || second.ID == "" {
		t.Fatalf("expected turn ids to be set, got %q and %q", first.ID, second.ID)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct turn ids, both were %q", first.ID)
	}
	if second.Role != RoleModel {
		t.Fatalf("expected role %q, got %q", RoleModel, second.Role)
	}
}
