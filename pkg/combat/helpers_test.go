package combat

import "github.com/amoisekai/engine/pkg/crng"

func crngDefaults() crng.FateConfig { return crng.DefaultFateConfig() }
