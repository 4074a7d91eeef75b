package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/amoisekai/engine/pkg/player"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGraphRunsLinearChain(t *testing.T) {
	set := func(v int) Node {
		return func(_ context.Context, s State) (Patch, error) {
			return func(st *State) { st.ChapterNumber = st.ChapterNumber*10 + v }, nil
		}
	}
	g := NewGraph("test", discard()).
		AddNode("a", set(1)).
		AddNode("b", set(2)).
		AddNode("c", set(3)).
		Chain("a", "b", "c")

	got, err := g.Run(context.Background(), State{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.ChapterNumber != 123 {
		t.Errorf("ChapterNumber = %d, want 123", got.ChapterNumber)
	}
	if want := []string{"a", "b", "c"}; !slices.Equal(got.Trace, want) {
		t.Errorf("Trace = %v, want %v", got.Trace, want)
	}
}

func TestGraphNodesSeeACopy(t *testing.T) {
	g := NewGraph("test", discard()).
		AddNode("meddle", func(_ context.Context, s State) (Patch, error) {
			s.Player.Name = "someone else"
			s.Player.HP = 1
			return nil, nil
		})

	pl := player.New("p1", "u1", "Kael")
	got, err := g.Run(context.Background(), State{Player: pl})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Player.Name != "Kael" || pl.HP != player.DefaultHPMax {
		t.Errorf("node mutated shared player: name %q hp %.0f", got.Player.Name, pl.HP)
	}
}

func TestGraphConditionalLoop(t *testing.T) {
	g := NewGraph("loop", discard()).
		AddNode("tick", func(_ context.Context, s State) (Patch, error) {
			return func(st *State) { st.Rewrites++ }, nil
		}).
		AddNode("done", func(context.Context, State) (Patch, error) { return nil, nil }).
		AddConditionalEdge("tick", func(s State) string {
			if s.Rewrites < 3 {
				return "tick"
			}
			return "done"
		})

	got, err := g.Run(context.Background(), State{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := []string{"tick", "tick", "tick", "done"}; !slices.Equal(got.Trace, want) {
		t.Errorf("Trace = %v, want %v", got.Trace, want)
	}
}

func TestGraphErrors(t *testing.T) {
	tests := []struct {
		name    string
		graph   *Graph
		ctx     func() context.Context
		wantErr string
	}{
		{
			name:    "empty graph",
			graph:   NewGraph("empty", discard()),
			wantErr: "no nodes",
		},
		{
			name:    "runaway loop",
			graph:   NewGraph("spin", discard()).
				AddNode("spin", func(context.Context, State) (Patch, error) { return nil, nil }).
				AddEdge("spin", "spin"),
			wantErr: "exceeded",
		},
		{
			name:    "node failure",
			graph:   NewGraph("fail", discard()).
				AddNode("boom", func(context.Context, State) (Patch, error) { return nil, errors.New("kaput") }),
			wantErr: "node boom: kaput",
		},
		{
			name:    "unknown target",
			graph:   NewGraph("dangling", discard()).
				AddNode("a", func(context.Context, State) (Patch, error) { return nil, nil }).
				AddEdge("a", "nowhere"),
			wantErr: "unknown node",
		},
		{
			name:  "cancelled context",
			graph: NewGraph("cancel", discard()).
				AddNode("a", func(context.Context, State) (Patch, error) { return nil, nil }),
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: "canceled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			_, err := tt.graph.Run(ctx, State{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Run() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
