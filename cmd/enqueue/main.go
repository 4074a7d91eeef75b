// Package main puts requests on the worker queue and follows their
// progress events.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amoisekai/engine/internal/config"
	"github.com/amoisekai/engine/internal/logger"
	"github.com/amoisekai/engine/internal/services/events"
	"github.com/amoisekai/engine/internal/services/queue"
	queuePkg "github.com/amoisekai/engine/pkg/queue"
)

var (
	redisURL string
	userID   string
	storyID  string
	follow   bool
	timeout  time.Duration

	tone      string
	name      string
	backstory string
	tags      []string

	choiceID  string
	freeInput string

	chapterID string
	scene     int
	decisions []string

	event string
)

var rootCmd = &cobra.Command{
	Use:   "amoisekai-enqueue",
	Short: "Enqueue engine requests for the worker",
	Long:  `Pushes start_story, chapter_plan and scene requests onto the request queue, or story events onto a story's event queue, and optionally follows the worker's progress events.`,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a story",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := queuePkg.NewRequest(queuePkg.RequestTypeStartStory, userID, "")
		req.Tone = tone
		req.ProtagonistName = name
		req.Backstory = backstory
		req.PreferenceTags = tags
		return send(cmd.Context(), req)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan the next chapter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := queuePkg.NewRequest(queuePkg.RequestTypeChapterPlan, userID, storyID)
		req.ChoiceID = choiceID
		req.FreeInput = freeInput
		return send(cmd.Context(), req)
	},
}

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Write the next scene of a planned chapter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := queuePkg.NewRequest(queuePkg.RequestTypeScene, userID, storyID)
		req.ChapterID = chapterID
		req.SceneNumber = scene
		req.ChoiceID = choiceID
		req.FreeInput = freeInput
		req.CombatDecisions = decisions
		return send(cmd.Context(), req)
	},
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Queue a story event for the next chapter plan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if storyID == "" || event == "" {
			return fmt.Errorf("--story and --text are required")
		}
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()
		q := queue.NewStoryEventQueue(client)
		if err := q.Enqueue(cmd.Context(), storyID, event); err != nil {
			return err
		}
		depth, err := q.Depth(cmd.Context(), storyID)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Queued story event for %s (%d pending)\n", storyID, depth)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := "redis://localhost:6379"
	if cfg, err := config.Load(); err == nil && cfg.RedisURL != "" {
		defaultURL = cfg.RedisURL
	}
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", defaultURL, "Redis URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id")
	rootCmd.PersistentFlags().StringVar(&storyID, "story", "", "story id")
	rootCmd.PersistentFlags().BoolVar(&follow, "follow", true, "print progress events until the request finishes")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Minute, "how long to follow")

	startCmd.Flags().StringVar(&tone, "tone", "", "story tone")
	startCmd.Flags().StringVar(&name, "name", "", "protagonist name")
	startCmd.Flags().StringVar(&backstory, "backstory", "", "protagonist backstory")
	startCmd.Flags().StringSliceVar(&tags, "tags", nil, "preference tags")

	for _, c := range []*cobra.Command{planCmd, sceneCmd} {
		c.Flags().StringVar(&choiceID, "choice", "", "id of the chosen option")
		c.Flags().StringVar(&freeInput, "input", "", "free-form player input")
	}
	sceneCmd.Flags().StringVar(&chapterID, "chapter", "", "chapter id")
	sceneCmd.Flags().IntVar(&scene, "scene", 1, "scene number")
	sceneCmd.Flags().StringSliceVar(&decisions, "decisions", nil, "combat decisions, e.g. strike:push,shift")

	eventCmd.Flags().StringVar(&event, "text", "", "event description")

	rootCmd.AddCommand(startCmd, planCmd, sceneCmd, eventCmd)
}

func connect(ctx context.Context) (*queue.Client, error) {
	return queue.NewClient(ctx, redisURL, logger.Discard())
}

func send(ctx context.Context, req *queuePkg.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Subscribe before enqueueing so no event is missed.
	var sub <-chan events.Event
	b := events.NewBroadcaster(client.GetRedisClient(), logger.Discard())
	if follow {
		if sub, err = b.Subscribe(ctx, req.LockKey()); err != nil {
			return err
		}
	}

	if err := queue.NewRequestQueue(client).EnqueueRequest(ctx, req); err != nil {
		return err
	}
	_ = b.PublishRequestQueued(ctx, req.LockKey(), req.RequestID, string(req.Type))
	fmt.Printf("✅ Enqueued %s request: %s\n", req.Type, req.RequestID)
	if !follow {
		return nil
	}

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return fmt.Errorf("subscription closed")
			}
			if ev.RequestID != "" && ev.RequestID != req.RequestID {
				continue
			}
			switch ev.Type {
			case events.EventTypeRequestProgress:
				fmt.Printf("… %v (%vms)\n", ev.Data["status"], ev.Data["elapsed_ms"])
			case events.EventTypeRequestCompleted:
				out, err := json.MarshalIndent(ev.Data["result"], "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			case events.EventTypeRequestFailed:
				return fmt.Errorf("request failed: %v", ev.Data["error"])
			default:
				fmt.Println(ev.Type)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
