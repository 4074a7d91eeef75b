package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/story"
)

func TestMockStorage_StoryRoundTrip(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()

	s := &story.Story{ID: "s1", UserID: "u1", ProtagonistName: "Lan"}
	if err := m.CreateStory(ctx, s); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	if err := m.CreateStory(ctx, s); err == nil {
		t.Error("expected duplicate story to fail")
	}

	got, err := m.GetStory(ctx, "s1")
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	got.ProtagonistName = "changed"
	again, _ := m.GetStory(ctx, "s1")
	if again.ProtagonistName != "Lan" {
		t.Errorf("stored story was mutated through a returned copy")
	}

	if _, err := m.GetStory(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStory(missing) err = %v, want ErrNotFound", err)
	}
}

func TestMockStorage_ChaptersAndScenesOrdered(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	for _, n := range []int{3, 1, 2} {
		c := &story.Chapter{ID: string(rune('a' + n)), StoryID: "s1", ChapterNumber: n}
		if err := m.CreateChapter(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	chapters, _ := m.ListChapters(ctx, "s1")
	if len(chapters) != 3 || chapters[0].ChapterNumber != 1 || chapters[2].ChapterNumber != 3 {
		t.Errorf("chapters not ordered: %+v", chapters)
	}

	for _, n := range []int{2, 1} {
		if err := m.CreateScene(ctx, &story.Scene{ChapterID: "c", SceneNumber: n}); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.CreateScene(ctx, &story.Scene{ChapterID: "c", SceneNumber: 1}); err == nil {
		t.Error("expected duplicate scene number to fail")
	}
	scenes, _ := m.ListScenes(ctx, "c")
	if len(scenes) != 2 || scenes[0].SceneNumber != 1 {
		t.Errorf("scenes not ordered: %+v", scenes)
	}
}

func TestMockStorage_PlayerFlagsAndEvents(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	p := player.New("p1", "u1", "Lan")
	if err := m.CreatePlayer(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := m.SetPlayerFlag(ctx, "p1", "met_veyra", true); err != nil {
		t.Fatal(err)
	}
	v, err := m.GetPlayerFlag(ctx, "p1", "met_veyra")
	if err != nil || !v {
		t.Errorf("GetPlayerFlag = %v, %v", v, err)
	}
	byUser, err := m.GetPlayerByUser(ctx, "u1")
	if err != nil || byUser.ID != "p1" {
		t.Errorf("GetPlayerByUser = %v, %v", byUser, err)
	}

	_ = m.AppendIdentityEvent(ctx, IdentityEvent{PlayerID: "p1", Chapter: 1, Source: "chapter"})
	_ = m.AppendIdentityEvent(ctx, IdentityEvent{PlayerID: "p1", Chapter: 2, Source: "scene"})
	events, _ := m.ListIdentityEvents(ctx, "p1")
	if len(events) != 2 || events[1].Chapter != 2 {
		t.Errorf("events = %+v", events)
	}
}

func TestMockStorage_StaleUpdateKeepsFlagsAndScenePatches(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	if err := m.CreatePlayer(ctx, player.New("p1", "u1", "Lan")); err != nil {
		t.Fatal(err)
	}
	stale, _ := m.GetPlayer(ctx, "p1")
	if err := m.SetPlayerFlag(ctx, "p1", "met_veyra", true); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdatePlayer(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.GetPlayerFlag(ctx, "p1", "met_veyra"); !v {
		t.Error("flag lost after stale UpdatePlayer")
	}

	if err := m.CreateScene(ctx, &story.Scene{ChapterID: "c", SceneNumber: 1}); err != nil {
		t.Fatal(err)
	}
	_ = m.SetSceneChosenChoice(ctx, "c", 1, "b")
	_ = m.SetSceneCriticScore(ctx, "c", 1, 6)
	sc, _ := m.GetScene(ctx, "c", 1)
	if sc.ChosenChoiceID != "b" || sc.CriticScore != 6 {
		t.Errorf("scene = %+v", sc)
	}
}

func TestMockStorage_WriteError(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	boom := errors.New("boom")
	m.SetWriteError(boom)
	if err := m.CreatePlayer(ctx, player.New("p1", "u1", "Lan")); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	m.SetWriteError(nil)
	if err := m.CreatePlayer(ctx, player.New("p1", "u1", "Lan")); err != nil {
		t.Errorf("err = %v after clearing", err)
	}
}
