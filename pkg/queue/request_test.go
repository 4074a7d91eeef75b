package queue

import (
	"testing"
)

func TestRequestValidate(t *testing.T) {
	scene := NewRequest(RequestTypeScene, "u1", "s1")
	scene.ChapterID = "c1"
	scene.SceneNumber = 2

	badScene := NewRequest(RequestTypeScene, "u1", "s1")

	tests := []struct {
		name    string
		req     *Request
		wantErr bool
	}{
		{"start story", NewRequest(RequestTypeStartStory, "u1", ""), false},
		{"plan", NewRequest(RequestTypeChapterPlan, "u1", "s1"), false},
		{"plan without story", NewRequest(RequestTypeChapterPlan, "u1", ""), true},
		{"scene", scene, false},
		{"scene without chapter", badScene, true},
		{"missing user", NewRequest(RequestTypeStartStory, "", ""), true},
		{"unknown type", NewRequest("chat", "u1", "s1"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestJSON(t *testing.T) {
	req := NewRequest(RequestTypeScene, "u1", "s1")
	req.ChapterID = "c1"
	req.SceneNumber = 3
	req.CombatDecisions = []string{"strike", "stabilize"}

	data, err := req.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.RequestID != req.RequestID || got.SceneNumber != 3 || len(got.CombatDecisions) != 2 {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if _, err := FromJSON([]byte("{")); err == nil {
		t.Error("expected error for bad JSON")
	}
}

func TestLockKey(t *testing.T) {
	if k := NewRequest(RequestTypeStartStory, "u1", "").LockKey(); k != "user:u1" {
		t.Errorf("LockKey = %q", k)
	}
	if k := NewRequest(RequestTypeScene, "u1", "s9").LockKey(); k != "s9" {
		t.Errorf("LockKey = %q", k)
	}
}
