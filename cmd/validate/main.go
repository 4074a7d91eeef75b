// Package main validates the engine's content files and lets designers
// sample the fate roller.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/spf13/cobra"

	"github.com/amoisekai/engine/pkg/crng"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/world"
)

var rootCmd = &cobra.Command{
	Use:   "amoisekai-validate",
	Short: "Validate Amoisekai content",
	Long:  `Checks the skill catalog, principle pair templates, soul forge scenes, world registry and prompt templates, and samples the fate roller.`,
}

var (
	catalogPath  string
	scenesPath   string
	registryPath string
	promptsDir   string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate content files (embedded defaults when no path is given)",
	RunE:  runValidate,
}

var (
	rollChapters     int
	rollBreakthrough float64
	rollDNA          []string
)

var rollCmd = &cobra.Command{
	Use:   "roll",
	Short: "Roll fate for a run of chapters and print each event",
	RunE:  runRoll,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	validateCmd.Flags().StringVar(&catalogPath, "catalog", "", "skill catalog YAML")
	validateCmd.Flags().StringVar(&scenesPath, "scenes", "", "soul forge scenes YAML")
	validateCmd.Flags().StringVar(&registryPath, "registry", "", "world registry YAML")
	validateCmd.Flags().StringVar(&promptsDir, "prompts-dir", "", "directory of prompt template overrides")

	rollCmd.Flags().IntVar(&rollChapters, "chapters", 50, "number of chapters to roll")
	rollCmd.Flags().Float64Var(&rollBreakthrough, "breakthrough", 0, "breakthrough meter (0-100)")
	rollCmd.Flags().StringSliceVar(&rollDNA, "dna", nil, "DNA affinity tags")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(rollCmd)
}

// ContentValidator collects every problem instead of stopping at the first.
type ContentValidator struct {
	errors []string
}

func (v *ContentValidator) check(name string, err error) {
	if err != nil {
		v.errors = append(v.errors, fmt.Sprintf("%s: %v", name, err))
		return
	}
	fmt.Printf("✓ %s\n", name)
}

func readOr(path string, def func() error, parse func([]byte) error) error {
	if path == "" {
		return def()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return parse(data)
}

func runValidate(_ *cobra.Command, _ []string) error {
	v := &ContentValidator{}

	v.check("skill catalog", readOr(catalogPath,
		func() error {
			c, err := skill.DefaultCatalog()
			if err != nil {
				return err
			}
			return c.Validate()
		},
		func(data []byte) error {
			c, err := skill.ParseCatalog(data)
			if err != nil {
				return err
			}
			return c.Validate()
		}))

	v.check("principle pair templates", validatePairs())

	v.check("soul forge scenes", readOr(scenesPath,
		func() error { _, err := soulforge.DefaultScenes(); return err },
		func(data []byte) error { _, err := soulforge.ParseScenes(data); return err }))

	v.check("world registry", readOr(registryPath,
		func() error { _, err := world.DefaultRegistry(); return err },
		func(data []byte) error { _, err := world.ParseRegistry(data); return err }))

	lib, err := prompts.Load(promptsDir)
	if err == nil {
		err = lib.Validate()
	}
	v.check("prompt templates", err)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	fmt.Println("All content is valid!")
	return nil
}

func validatePairs() error {
	var problems []string
	for _, t := range skill.PairTemplates() {
		name := fmt.Sprintf("%s+%s", t.Pair.A, t.Pair.B)
		if t.BlendName == "" || t.MechanicPattern == "" {
			problems = append(problems, name+" is missing a blend name or mechanic")
		}
		if t.PowerMultiplier <= 1 {
			problems = append(problems, fmt.Sprintf("%s has power multiplier %.2f", name, t.PowerMultiplier))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func runRoll(_ *cobra.Command, _ []string) error {
	if rollChapters < 1 {
		return fmt.Errorf("--chapters must be positive")
	}
	gen := crng.New(dice.DefaultRoller)
	fate := crng.DefaultFateConfig()
	buffer := 100.0
	pity := 0
	fired := 0

	for ch := 1; ch <= rollChapters; ch++ {
		ev, err := gen.Roll(crng.Input{
			Chapter:           ch,
			PityCounter:       pity,
			BreakthroughMeter: rollBreakthrough,
			DNAAffinity:       rollDNA,
		})
		if err != nil {
			return fmt.Errorf("chapter %d: %w", ch, err)
		}
		buffer = fate.Decay(buffer, ch)
		line := fmt.Sprintf("ch %3d  pity %2d  fate %5.1f  ", ch, pity, buffer)
		if ev.Triggered {
			fired++
			line += fmt.Sprintf("%s (p=%.3f)", ev.EventType, ev.Probability)
			if ev.Major {
				line += " major"
			}
		} else {
			line += "-"
		}
		fmt.Println(line)
		pity = crng.NextPity(pity, ev)
	}
	fmt.Printf("\n%d of %d chapters rolled an event\n", fired, rollChapters)
	return nil
}
