package crng

// Fate buffer tuning.
const (
	FateThreshold          = 20.0
	FateSaveCost           = 25.0
	DefaultProtectionEnds  = 40
	DefaultDecayPerChapter = 2.0
)

// FateConfig parameterises the fate buffer.
type FateConfig struct {
	ProtectionChapters int
	DecayPerChapter    float64
}

// DefaultFateConfig returns the standard window and decay.
func DefaultFateConfig() FateConfig {
	return FateConfig{ProtectionChapters: DefaultProtectionEnds, DecayPerChapter: DefaultDecayPerChapter}
}

// CanSave reports whether a lethal hit is absorbed.
func (c FateConfig) CanSave(buffer float64, chapter int) bool {
	return chapter <= c.ProtectionChapters && buffer >= FateThreshold
}

// Save applies a soft-death save. It returns the new hp and buffer, and
// whether the save fired.
func (c FateConfig) Save(hp, buffer float64, chapter int) (float64, float64, bool) {
	if hp > 0 || !c.CanSave(buffer, chapter) {
		return hp, buffer, false
	}
	return 1, max(buffer-FateSaveCost, 0), true
}

// Decay returns the buffer after one chapter.
func (c FateConfig) Decay(buffer float64, chapter int) float64 {
	if chapter <= c.ProtectionChapters {
		return buffer
	}
	return max(buffer-c.DecayPerChapter, 0)
}

// Instruction is the narrative hint injected into planner and writer
// prompts for the current buffer band.
func (c FateConfig) Instruction(buffer float64, chapter int) string {
	if chapter > c.ProtectionChapters && buffer < FateThreshold {
		return "Fate no longer shields the protagonist. Death is real and final."
	}
	switch {
	case buffer >= 80:
		return "The protagonist feels protected, though they sense it is temporary."
	case buffer >= 50:
		return "Luck still bends toward the protagonist, but near misses feel closer."
	case buffer >= FateThreshold:
		return "The protagonist's luck is fraying. Each escape costs more than the last."
	default:
		return "Fate is nearly spent. The next fall may not be caught."
	}
}
