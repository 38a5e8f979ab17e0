package hardware

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// Static is a fixed topology. Pin calls are recorded instead of touching
// the OS, so it serves tests and CPU emulation.
type Static struct {
	cores    []Core
	features Features

	mu   sync.Mutex
	pins map[int]int
}

// NewStatic creates a topology from an explicit core list.
func NewStatic(cores []Core, features Features) *Static {
	cp := slices.Clone(cores)
	slices.SortFunc(cp, func(a, b Core) int { return a.ID - b.ID })
	return &Static{
		cores:    cp,
		features: features,
		pins:     make(map[int]int),
	}
}

// NewStaticCounts builds perf Performance cores (ids 0..perf-1) followed by
// eff Efficient cores and unknown Unknown cores.
func NewStaticCounts(perf, eff, unknown int) *Static {
	cores := make([]Core, 0, perf+eff+unknown)
	id := 0
	for i := 0; i < perf; i++ {
		cores = append(cores, Core{ID: id, Class: Performance})
		id++
	}
	for i := 0; i < eff; i++ {
		cores = append(cores, Core{ID: id, Class: Efficient})
		id++
	}
	for i := 0; i < unknown; i++ {
		cores = append(cores, Core{ID: id, Class: Unknown})
		id++
	}
	return NewStatic(cores, Features{Brand: "simulated"})
}

var simulationPattern = regexp.MustCompile(`(\d+)\s*([peu])`)

// ParseSimulation parses strings such as "8p4e", "6p" or "16u" into a
// Static topology. Performance cores get the lowest ids.
func ParseSimulation(spec string) (*Static, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "empty simulation spec")
	}

	matches := simulationPattern.FindAllStringSubmatchIndex(s, -1)
	counts := map[string]int{}
	consumed := 0
	for _, m := range matches {
		if strings.TrimSpace(s[consumed:m[0]]) != "" {
			return nil, apperrors.Newf(apperrors.CodeInvalidInput, "invalid simulation spec %q", spec)
		}
		n, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid simulation spec "+strconv.Quote(spec), err)
		}
		counts[s[m[4]:m[5]]] += n
		consumed = m[1]
	}
	if len(matches) == 0 || strings.TrimSpace(s[consumed:]) != "" {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "invalid simulation spec %q", spec)
	}
	if counts["p"]+counts["e"]+counts["u"] == 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "simulation spec %q has no cores", spec)
	}

	return NewStaticCounts(counts["p"], counts["e"], counts["u"]), nil
}

// Init is a no-op.
func (s *Static) Init() error { return nil }

// CPUCount returns the number of configured cores.
func (s *Static) CPUCount() int { return len(s.cores) }

// CoresByEfficiency returns the cores of one class ordered by ID.
func (s *Static) CoresByEfficiency(class EfficiencyClass) []Core {
	return filterClass(s.cores, class)
}

// Features returns the configured features.
func (s *Static) Features() Features { return s.features }

// Source reports the topology as simulated.
func (s *Static) Source() string { return "static" }

// PinCurrentThreadToCore records the pin request.
func (s *Static) PinCurrentThreadToCore(coreID int) error {
	if !slices.ContainsFunc(s.cores, func(c Core) bool { return c.ID == coreID }) {
		return apperrors.Newf(apperrors.CodeTopologyError, "core %d not present", coreID)
	}
	s.mu.Lock()
	s.pins[coreID]++
	s.mu.Unlock()
	return nil
}

// Pins returns how many times each core was pinned.
func (s *Static) Pins() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int, len(s.pins))
	for k, v := range s.pins {
		out[k] = v
	}
	return out
}
