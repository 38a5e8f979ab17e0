package hardware

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// Probe sources reported by System.Source.
const (
	SourceHybrid   = "intel-hybrid"
	SourceCapacity = "cpu-capacity"
	SourceUniform  = "uniform"
)

// System probes the running host through Linux sysfs.
type System struct {
	sysfsRoot string
	procRoot  string
	numCPU    func() int

	mu       sync.RWMutex
	ready    bool
	source   string
	cores    []Core
	features Features
}

// SystemOption configures a System.
type SystemOption func(*System)

// WithSysfsRoot points the probe at an alternate sysfs tree.
func WithSysfsRoot(root string) SystemOption {
	return func(s *System) {
		if root != "" {
			s.sysfsRoot = root
		}
	}
}

// WithProcRoot points the brand probe at an alternate procfs tree.
func WithProcRoot(root string) SystemOption {
	return func(s *System) {
		if root != "" {
			s.procRoot = root
		}
	}
}

// WithCPUCount overrides runtime.NumCPU for the uniform fallback.
func WithCPUCount(n int) SystemOption {
	return func(s *System) {
		if n > 0 {
			s.numCPU = func() int { return n }
		}
	}
}

// NewSystem creates a System reading /sys and /proc by default.
func NewSystem(opts ...SystemOption) *System {
	s := &System{
		sysfsRoot: "/sys",
		procRoot:  "/proc",
		numCPU:    runtime.NumCPU,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init probes the host once; later calls are no-ops.
func (s *System) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	cores, source, err := s.probeHybrid()
	if err != nil {
		return err
	}
	if cores == nil {
		cores, source, err = s.probeCapacity()
		if err != nil {
			return err
		}
	}
	if cores == nil {
		n := s.numCPU()
		if n <= 0 {
			return apperrors.Newf(apperrors.CodeTopologyError, "no logical CPUs reported")
		}
		cores = make([]Core, n)
		for i := range cores {
			cores[i] = Core{ID: i, Class: Unknown}
		}
		source = SourceUniform
	}

	slices.SortFunc(cores, func(a, b Core) int { return a.ID - b.ID })
	s.cores = cores
	s.source = source
	s.features = Features{
		AVX:   cpu.X86.HasAVX,
		AVX2:  cpu.X86.HasAVX2,
		Brand: s.readBrand(),
	}
	s.ready = true
	return nil
}

// CPUCount returns the number of logical CPUs found by Init.
func (s *System) CPUCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cores)
}

// CoresByEfficiency returns the cores of one class ordered by ID.
func (s *System) CoresByEfficiency(class EfficiencyClass) []Core {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterClass(s.cores, class)
}

// Features returns the instruction-set flags and brand string.
func (s *System) Features() Features {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features
}

// Source names the probe that produced the classification.
func (s *System) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// PinCurrentThreadToCore pins the calling OS thread. The caller must hold
// runtime.LockOSThread for the pin to stick to its goroutine.
func (s *System) PinCurrentThreadToCore(coreID int) error {
	s.mu.RLock()
	known := slices.ContainsFunc(s.cores, func(c Core) bool { return c.ID == coreID })
	s.mu.RUnlock()

	if !known {
		return apperrors.Newf(apperrors.CodeTopologyError, "core %d not present", coreID)
	}
	return pinThread(coreID)
}

// probeHybrid reads the Intel hybrid PMU device lists.
func (s *System) probeHybrid() ([]Core, string, error) {
	perf, err := s.readCPUList("devices", "cpu_core", "cpus")
	if err != nil {
		return nil, "", err
	}
	eff, err := s.readCPUList("devices", "cpu_atom", "cpus")
	if err != nil {
		return nil, "", err
	}
	if len(perf) == 0 && len(eff) == 0 {
		return nil, "", nil
	}

	cores := make([]Core, 0, len(perf)+len(eff))
	for _, id := range perf {
		cores = append(cores, Core{ID: id, Class: Performance})
	}
	for _, id := range eff {
		cores = append(cores, Core{ID: id, Class: Efficient})
	}
	return cores, SourceHybrid, nil
}

// probeCapacity ranks CPUs by cpu_capacity: the highest capacity is the
// Performance class, anything lower is Efficient, a flat ranking is Unknown.
func (s *System) probeCapacity() ([]Core, string, error) {
	ids, err := s.cpuIDs()
	if err != nil || len(ids) == 0 {
		return nil, "", err
	}

	cores := make([]Core, 0, len(ids))
	found := false
	maxCap, minCap := 0, -1
	for _, id := range ids {
		c := Core{ID: id, Class: Unknown}
		raw, err := os.ReadFile(filepath.Join(s.sysfsRoot, "devices", "system", "cpu", "cpu"+strconv.Itoa(id), "cpu_capacity"))
		if err == nil {
			v, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
			if convErr != nil {
				return nil, "", apperrors.Wrap(apperrors.CodeTopologyError, "invalid cpu_capacity for cpu"+strconv.Itoa(id), convErr)
			}
			c.Capacity = v
			found = true
			maxCap = max(maxCap, v)
			if minCap < 0 || v < minCap {
				minCap = v
			}
		}
		cores = append(cores, c)
	}
	if !found {
		return nil, "", nil
	}

	if maxCap != minCap {
		for i := range cores {
			switch {
			case cores[i].Capacity == 0:
				// no capacity file, leave Unknown
			case cores[i].Capacity == maxCap:
				cores[i].Class = Performance
			default:
				cores[i].Class = Efficient
			}
		}
	}
	return cores, SourceCapacity, nil
}

// cpuIDs lists the online CPUs, falling back to the cpuN directories.
func (s *System) cpuIDs() ([]int, error) {
	ids, err := s.readCPUList("devices", "system", "cpu", "online")
	if err != nil || len(ids) > 0 {
		return ids, err
	}

	matches, _ := filepath.Glob(filepath.Join(s.sysfsRoot, "devices", "system", "cpu", "cpu[0-9]*"))
	for _, m := range matches {
		id, convErr := strconv.Atoi(strings.TrimPrefix(filepath.Base(m), "cpu"))
		if convErr == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// readCPUList returns nil without error when the file does not exist.
func (s *System) readCPUList(parts ...string) ([]int, error) {
	raw, err := os.ReadFile(filepath.Join(append([]string{s.sysfsRoot}, parts...)...))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeTopologyError, "read "+filepath.Join(parts...), err)
	}
	return ParseCPUList(string(raw))
}

func (s *System) readBrand() string {
	f, err := os.Open(filepath.Join(s.procRoot, "cpuinfo"))
	if err != nil {
		return runtime.GOARCH
	}
	defer f.Close()

	fallback := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "model name":
			return strings.TrimSpace(value)
		case "Hardware", "Model":
			if fallback == "" {
				fallback = strings.TrimSpace(value)
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return runtime.GOARCH
}
