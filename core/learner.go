package core

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/titanops/titan/log"
)

const (
	maxAttemptHistory = 1000
	learningRate      = 0.01
	retentionWindow   = 24 * time.Hour
	recencyWindow     = time.Hour
	featureCount      = 13
	minFeatureWeight  = 0.1
	maxFeatureWeight  = 2.0
)

// Attempt is an immutable record of one bypass attempt. Everything the
// learner knows comes from these.
type Attempt struct {
	Timestamp     time.Time
	Domain        string
	ChallengeType string
	Strategy      string
	Success       bool
	ResponseTime  float64 // seconds
	StatusCode    int

	TLSFingerprint    string
	CanvasFingerprint string
	WebGLFingerprint  string

	DelayUsed       float64
	BehaviorProfile string

	DetectionConfidence float64
	AntiDetection       bool

	TimeOfDay  int // 0-23
	DayOfWeek  int // 0=Monday .. 6=Sunday
	SessionAge float64
}

// hashFeature maps a categorical value onto [0,1) deterministically.
func hashFeature(s string) float64 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return float64(h.Sum32()%1000) / 1000.0
}

// FeatureVector derives the fixed-length numeric encoding of the attempt.
func (a *Attempt) FeatureVector() [featureCount]float64 {
	return [featureCount]float64{
		a.ResponseTime,
		a.DelayUsed,
		a.SessionAge,
		float64(a.TimeOfDay) / 24.0,
		float64(a.DayOfWeek) / 7.0,
		hashFeature(a.Strategy),
		hashFeature(a.BehaviorProfile),
		boolFeature(a.AntiDetection),
		a.DetectionConfidence,
		float64(a.StatusCode) / 1000.0,
		hashFeature(a.TLSFingerprint),
		hashFeature(a.CanvasFingerprint),
		hashFeature(a.WebGLFingerprint),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// StrategyContext is the situational input to a prediction.
type StrategyContext struct {
	TimeOfDay       int
	DayOfWeek       int
	BehaviorProfile string
}

// CurrentContext builds a context from the wall clock.
func CurrentContext() *StrategyContext {
	now := time.Now()
	return &StrategyContext{
		TimeOfDay: now.Hour(),
		DayOfWeek: (int(now.Weekday()) + 6) % 7, // Monday = 0
	}
}

// ScoredStrategy is a strategy name with its prediction score.
type ScoredStrategy struct {
	Strategy string
	Score    float64
}

// Prediction is the learner's answer for one (domain, context) query.
type Prediction struct {
	Strategy     string
	Confidence   float64
	Reasoning    string
	Alternatives []ScoredStrategy
}

type domainModel struct {
	successes   map[string][]*Attempt
	failures    map[string][]*Attempt
	lastUpdated time.Time
}

func newDomainModel() *domainModel {
	return &domainModel{
		successes: make(map[string][]*Attempt),
		failures:  make(map[string][]*Attempt),
	}
}

// Learner is the per-domain online model mapping (domain, context) to the
// best known strategy. A single mutex makes the read-modify-write on domain
// lists and the global ring atomic, so one instance can back many scrapers.
type Learner struct {
	history []*Attempt
	domains map[string]*domainModel
	weights [featureCount]float64
	mu      sync.Mutex
}

func NewLearner() *Learner {
	l := &Learner{
		domains: make(map[string]*domainModel),
	}
	for i := range l.weights {
		l.weights[i] = 1.0
	}
	return l
}

// RecordAttempt feeds one outcome into the model: the global ring, the
// domain's success or failure list, the feature weights, and the 24h purge
// for that domain.
func (l *Learner) RecordAttempt(a *Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, a)
	if len(l.history) > maxAttemptHistory {
		l.history = l.history[len(l.history)-maxAttemptHistory:]
	}

	model, ok := l.domains[a.Domain]
	if !ok {
		model = newDomainModel()
		l.domains[a.Domain] = model
	}
	if a.Success {
		model.successes[a.Strategy] = append(model.successes[a.Strategy], a)
	} else {
		model.failures[a.Strategy] = append(model.failures[a.Strategy], a)
	}
	model.lastUpdated = time.Now()

	l.updateWeights(a)
	purgeOld(model, time.Now().Add(-retentionWindow))

	log.Debug("[learner] recorded attempt: domain=%s strategy=%s success=%v status=%d", a.Domain, a.Strategy, a.Success, a.StatusCode)
}

func (l *Learner) updateWeights(a *Attempt) {
	adjustment := learningRate
	if !a.Success {
		adjustment = -learningRate
	}
	features := a.FeatureVector()
	for i, value := range features {
		if value > 0 {
			l.weights[i] += adjustment * value
			if l.weights[i] < minFeatureWeight {
				l.weights[i] = minFeatureWeight
			}
			if l.weights[i] > maxFeatureWeight {
				l.weights[i] = maxFeatureWeight
			}
		}
	}
}

func purgeOld(model *domainModel, cutoff time.Time) {
	for strategy, attempts := range model.successes {
		model.successes[strategy] = keepAfter(attempts, cutoff)
	}
	for strategy, attempts := range model.failures {
		model.failures[strategy] = keepAfter(attempts, cutoff)
	}
}

func keepAfter(attempts []*Attempt, cutoff time.Time) []*Attempt {
	kept := attempts[:0]
	for _, a := range attempts {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}

// FeatureWeights returns a copy of the global feature weight vector.
func (l *Learner) FeatureWeights() [featureCount]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.weights
}

// HistoryLen returns the current size of the global attempt ring.
func (l *Learner) HistoryLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.history)
}

// PredictBestStrategy scores every strategy seen for the domain and returns
// the best one with up to two runner-ups. A domain with no recorded success
// yields the default strategy at zero confidence. Equal scores tie-break on
// lexical strategy name order, which keeps predictions deterministic.
func (l *Learner) PredictBestStrategy(domain string, ctx *StrategyContext) *Prediction {
	l.mu.Lock()
	defer l.mu.Unlock()

	model, ok := l.domains[domain]
	if !ok || !hasAny(model.successes) {
		return &Prediction{Strategy: "default", Confidence: 0.0, Reasoning: "no historical data"}
	}

	now := time.Now()
	var scored []ScoredStrategy
	for strategy, successes := range model.successes {
		failures := model.failures[strategy]
		total := len(successes) + len(failures)
		if total == 0 {
			continue
		}
		successRate := float64(len(successes)) / float64(total)
		recent := 0
		for _, a := range successes {
			if a.Timestamp.After(now.Add(-recencyWindow)) {
				recent++
			}
		}
		recencyBonus := float64(recent) * 0.1
		similarity := contextSimilarity(successes, ctx, now)
		scored = append(scored, ScoredStrategy{
			Strategy: strategy,
			Score:    (successRate + recencyBonus) * similarity,
		})
	}

	if len(scored) == 0 {
		return &Prediction{Strategy: "default", Confidence: 0.0, Reasoning: "no viable strategies"}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Strategy < scored[j].Strategy
	})

	best := scored[0]
	alternatives := scored[1:]
	if len(alternatives) > 2 {
		alternatives = alternatives[:2]
	}
	confidence := best.Score
	if confidence > 1.0 {
		confidence = 1.0
	}
	return &Prediction{
		Strategy:     best.Strategy,
		Confidence:   confidence,
		Reasoning:    "best success rate with context similarity",
		Alternatives: alternatives,
	}
}

// contextSimilarity blends hour proximity (30%), weekday proximity (20%),
// behavior profile match (30%) and recency decay (20%) over the most recent
// ten successes. With nothing to sample it sits at the neutral 0.5.
func contextSimilarity(successes []*Attempt, ctx *StrategyContext, now time.Time) float64 {
	if len(successes) == 0 {
		return 0.5
	}
	sample := successes
	if len(sample) > 10 {
		sample = sample[len(sample)-10:]
	}
	var sum float64
	for _, a := range sample {
		var s float64

		hourDiff := float64(absInt(a.TimeOfDay - ctx.TimeOfDay))
		if 24-hourDiff < hourDiff {
			hourDiff = 24 - hourDiff
		}
		s += (1.0 - hourDiff/12.0) * 0.3

		dayDiff := float64(absInt(a.DayOfWeek - ctx.DayOfWeek))
		if 7-dayDiff < dayDiff {
			dayDiff = 7 - dayDiff
		}
		s += (1.0 - dayDiff/3.5) * 0.2

		if a.BehaviorProfile == ctx.BehaviorProfile {
			s += 1.0 * 0.3
		} else {
			s += 0.5 * 0.3
		}

		ageHours := now.Sub(a.Timestamp).Hours()
		decay := 1.0 - ageHours/24.0
		if decay < 0 {
			decay = 0
		}
		s += decay * 0.2

		sum += s
	}
	return sum / float64(len(sample))
}

func hasAny(m map[string][]*Attempt) bool {
	for _, attempts := range m {
		if len(attempts) > 0 {
			return true
		}
	}
	return false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
