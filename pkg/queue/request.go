// Package queue defines the requests workers pull from the shared queue.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	RequestTypeStartStory  RequestType = "start_story"
	RequestTypeChapterPlan RequestType = "chapter_plan"
	RequestTypeScene       RequestType = "scene"
)

// Request is one unit of engine work. Only the fields relevant to Type
// are set.
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	StoryID   string      `json:"story_id,omitempty"`
	UserID    string      `json:"user_id"`

	// start_story
	PreferenceTags  []string `json:"preference_tags,omitempty"`
	Backstory       string   `json:"backstory,omitempty"`
	ProtagonistName string   `json:"protagonist_name,omitempty"`
	Tone            string   `json:"tone,omitempty"`

	// chapter_plan and scene
	ChoiceID  string `json:"choice_id,omitempty"`
	FreeInput string `json:"free_input,omitempty"`

	// scene
	ChapterID       string   `json:"chapter_id,omitempty"`
	SceneNumber     int      `json:"scene_number,omitempty"`
	CombatDecisions []string `json:"combat_decisions,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRequest stamps a request id and enqueue time.
func NewRequest(t RequestType, userID, storyID string) *Request {
	return &Request{
		RequestID:  uuid.NewString(),
		Type:       t,
		UserID:     userID,
		StoryID:    storyID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// LockKey is the id the worker serialises on. Stories not created yet
// serialise per user.
func (r *Request) LockKey() string {
	if r.StoryID != "" {
		return r.StoryID
	}
	return "user:" + r.UserID
}

// Validate checks the fields required by the request type.
func (r *Request) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	switch r.Type {
	case RequestTypeStartStory:
	case RequestTypeChapterPlan:
		if r.StoryID == "" {
			return fmt.Errorf("story_id is required")
		}
	case RequestTypeScene:
		if r.StoryID == "" || r.ChapterID == "" {
			return fmt.Errorf("story_id and chapter_id are required")
		}
		if r.SceneNumber < 1 {
			return fmt.Errorf("scene_number must be >= 1")
		}
	default:
		return fmt.Errorf("unknown request type %q", r.Type)
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
