package core

// StrategyConfig is one named bypass posture: how the engine paces itself
// and how hard it leans on spoofing while walking the escalation ladder.
type StrategyConfig struct {
	BehaviorProfile  string  `json:"behavior_profile"`
	SpoofingLevel    string  `json:"spoofing_level"`
	TimingMultiplier float64 `json:"timing_multiplier"`
	AntiDetection    bool    `json:"anti_detection"`
}

// Fixed strategy catalog. The learner predicts a name; this resolves it.
var strategyCatalog = map[string]StrategyConfig{
	"conservative": {BehaviorProfile: "research", SpoofingLevel: "low", TimingMultiplier: 2.0, AntiDetection: true},
	"balanced":     {BehaviorProfile: "casual", SpoofingLevel: "medium", TimingMultiplier: 1.0, AntiDetection: true},
	"aggressive":   {BehaviorProfile: "focused", SpoofingLevel: "high", TimingMultiplier: 0.5, AntiDetection: true},
	"stealth":      {BehaviorProfile: "research", SpoofingLevel: "high", TimingMultiplier: 3.0, AntiDetection: true},
}

// SelectedStrategy is a resolved strategy ready for the escalation engine.
type SelectedStrategy struct {
	Name       string
	Config     StrategyConfig
	Confidence float64
	Reasoning  string
}

// SelectStrategy resolves the learner's prediction against the catalog.
// Unknown names (including the cold-start "default") resolve to balanced.
// During the dead hours of the night the engine slows down and spoofs hard,
// since low ambient traffic makes every client more visible.
func (l *Learner) SelectStrategy(domain string, ctx *StrategyContext) *SelectedStrategy {
	prediction := l.PredictBestStrategy(domain, ctx)

	config, ok := strategyCatalog[prediction.Strategy]
	if !ok {
		config = strategyCatalog["balanced"]
	}

	if ctx.TimeOfDay >= 1 && ctx.TimeOfDay <= 6 {
		config.TimingMultiplier *= 1.5
		config.SpoofingLevel = "high"
	}

	return &SelectedStrategy{
		Name:       prediction.Strategy,
		Config:     config,
		Confidence: prediction.Confidence,
		Reasoning:  prediction.Reasoning,
	}
}
