package config

import "time"

// Connect side fallbacks for assistant connects that name no side.
const (
	FallbackFirstFree = "first_free"
	FallbackRight     = "right"
	FallbackNone      = "none"
)

// DomainConfig holds the tunables of the graph engine. It is embedded in the
// application configuration and can be swapped at runtime.
type DomainConfig struct {
	Placement PlacementConfig `yaml:"placement" validate:"required"`
	Highlight HighlightConfig `yaml:"highlight" validate:"required"`
	Reconcile ReconcileConfig `yaml:"reconcile" validate:"required"`
}

// PlacementConfig drives node positioning.
type PlacementConfig struct {
	HorizontalStep float64 `yaml:"horizontal_step" validate:"gt=0"`
	VerticalStep   float64 `yaml:"vertical_step" validate:"gt=0"`
	CollisionBox   float64 `yaml:"collision_box" validate:"gt=0"`
	CollisionStepY float64 `yaml:"collision_step_y" validate:"gte=0"`
	MaxAttempts    int     `yaml:"max_attempts" validate:"gte=0,lte=50"`
	ParentlessGap  float64 `yaml:"parentless_gap" validate:"gt=0"`
	GridRows       int     `yaml:"grid_rows" validate:"gt=0"`
	GridSpacingX   float64 `yaml:"grid_spacing_x" validate:"gt=0"`
	GridSpacingY   float64 `yaml:"grid_spacing_y" validate:"gt=0"`

	// A node farther than max(NudgeMinDistance, NudgeWidthFactor*bbox width)
	// from the existing cluster is pulled back next to it.
	NudgeMinDistance float64 `yaml:"nudge_min_distance" validate:"gte=0"`
	NudgeWidthFactor float64 `yaml:"nudge_width_factor" validate:"gte=0"`
}

// HighlightConfig sets highlight lifetimes.
type HighlightConfig struct {
	AssistantDuration time.Duration `yaml:"assistant_duration" validate:"gt=0"`
	TraversalStep     time.Duration `yaml:"traversal_step" validate:"gt=0"`
}

// ReconcileConfig controls how batches are merged.
type ReconcileConfig struct {
	ConnectSideFallback string `yaml:"connect_side_fallback" validate:"oneof=first_free right none"`
	FitViewOnReplace    bool   `yaml:"fit_view_on_replace"`
	NudgeOnReplace      bool   `yaml:"nudge_on_replace"`
}

// DefaultDomainConfig returns the stock tunables.
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		Placement: PlacementConfig{
			HorizontalStep:   160,
			VerticalStep:     120,
			CollisionBox:     40,
			CollisionStepY:   20,
			MaxAttempts:      5,
			ParentlessGap:    160,
			GridRows:         5,
			GridSpacingX:     140,
			GridSpacingY:     120,
			NudgeMinDistance: 300,
			NudgeWidthFactor: 2,
		},
		Highlight: HighlightConfig{
			AssistantDuration: 2000 * time.Millisecond,
			TraversalStep:     300 * time.Millisecond,
		},
		Reconcile: ReconcileConfig{
			ConnectSideFallback: FallbackFirstFree,
			FitViewOnReplace:    true,
			NudgeOnReplace:      true,
		},
	}
}
