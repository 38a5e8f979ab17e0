// Package hardware describes the host CPU: how many logical cores it has,
// which of them are Performance or Efficient cores, and how to pin the
// calling OS thread to one of them.
package hardware

import "fmt"

// EfficiencyClass ranks a core by the OS efficiency classification.
type EfficiencyClass uint8

const (
	// Efficient cores trade throughput for power (Intel E-cores, ARM LITTLE).
	Efficient EfficiencyClass = 0
	// Performance cores are the fast cores (Intel P-cores, ARM big).
	Performance EfficiencyClass = 1
	// Unknown is reported when the OS exposes no classification.
	Unknown EfficiencyClass = 2
)

// String returns the lower-case class name.
func (c EfficiencyClass) String() string {
	switch c {
	case Efficient:
		return "efficient"
	case Performance:
		return "performance"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Core is a single logical CPU.
type Core struct {
	ID       int             `json:"id"`
	Class    EfficiencyClass `json:"class"`
	Capacity int             `json:"capacity,omitempty"`
}

// Features reports instruction-set support and the processor brand.
type Features struct {
	AVX   bool   `json:"avx"`
	AVX2  bool   `json:"avx2"`
	Brand string `json:"brand"`
}

// Topology is the read-only view of the host that the scheduler consumes.
type Topology interface {
	// Init probes the host. It must succeed before any other call.
	Init() error
	// CPUCount returns the number of logical CPUs.
	CPUCount() int
	// CoresByEfficiency returns the cores of one class ordered by ID.
	CoresByEfficiency(class EfficiencyClass) []Core
	// PinCurrentThreadToCore restricts the calling OS thread to coreID.
	PinCurrentThreadToCore(coreID int) error
}

// Summary counts cores per class.
type Summary struct {
	CPUs        int `json:"cpus"`
	Performance int `json:"performance"`
	Efficient   int `json:"efficient"`
	Unknown     int `json:"unknown"`
}

// Summarize builds a Summary from an initialised topology.
func Summarize(t Topology) Summary {
	return Summary{
		CPUs:        t.CPUCount(),
		Performance: len(t.CoresByEfficiency(Performance)),
		Efficient:   len(t.CoresByEfficiency(Efficient)),
		Unknown:     len(t.CoresByEfficiency(Unknown)),
	}
}

func filterClass(cores []Core, class EfficiencyClass) []Core {
	out := make([]Core, 0, len(cores))
	for _, c := range cores {
		if c.Class == class {
			out = append(out, c)
		}
	}
	return out
}

// Describer is implemented by topologies that can report CPU features and
// where their classification came from.
type Describer interface {
	Features() Features
	Source() string
}
