package orchestrator

import (
	"time"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// StageTimeouts bounds how long each stage may run before the orchestrator
// cancels its context and records a timeout error, per spec.md §5.
type StageTimeouts struct {
	Acquire  time.Duration
	Validate time.Duration
	Qualify  time.Duration
	Sink     time.Duration
}

// DefaultStageTimeouts matches spec.md §5's stated defaults.
var DefaultStageTimeouts = StageTimeouts{
	Acquire:  10 * time.Minute,
	Validate: 10 * time.Minute,
	Qualify:  2 * time.Minute,
	Sink:     1 * time.Minute,
}

// Options configures one orchestrator run. All fields have defaults via
// DefaultOptions, matching spec.md §6's "all options have defaults."
type Options struct {
	Mode              model.RunMode
	MinScore          int
	MaxProspects      int
	CostCeiling       resilience.Cost
	StageTimeouts     StageTimeouts
	MinConnections    int
	UseLocationFilter bool
	CityFilter        string
	RegionFilter      string
	IndustryHint      *string
}

// DefaultOptions returns the documented defaults: combined mode, score
// threshold 65, top 10, no cost ceiling, the default stage timeouts, no
// minimum-connections or location filter.
func DefaultOptions() Options {
	return Options{
		Mode:          model.ModeCombined,
		MinScore:      65,
		MaxProspects:  10,
		CostCeiling:   0, // 0 disables enforcement
		StageTimeouts: DefaultStageTimeouts,
	}
}
