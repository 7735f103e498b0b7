package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRolesHandlerList(t *testing.T) {
	rec := httptest.NewRecorder()
	RolesHandler{}.List(rec, httptest.NewRequest(http.MethodGet, "/api/help/roles", nil))

	var roles []string
	if err := json.NewDecoder(rec.Body).Decode(&roles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"OWNER", "EDITOR", "OPERATOR", "DESIGNER", "INVITE"}
	if len(roles) != len(want) {
		t.Fatalf("expected %v got %v", want, roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("expected %v got %v", want, roles)
		}
	}
}

func TestRolesHandlerLabels(t *testing.T) {
	rec := httptest.NewRecorder()
	RolesHandler{}.Labels(rec, httptest.NewRequest(http.MethodGet, "/api/help/roles/labels", nil))

	var labels []roleLabelResponse
	if err := json.NewDecoder(rec.Body).Decode(&labels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(labels) != 5 {
		t.Fatalf("expected 5 roles got %d", len(labels))
	}
	if labels[0].Role != "OWNER" || labels[0].Assignable {
		t.Fatalf("owner must not be assignable: %+v", labels[0])
	}
	if labels[4].Label != "Invited" || !labels[4].Assignable {
		t.Fatalf("unexpected invite label %+v", labels[4])
	}
}
