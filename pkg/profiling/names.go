// Package profiling groups worker and job names for timeline analysis.
package profiling

import "strings"

// WorkerGroup strips trailing digits and separators from a worker name.
// For example: "H_WORKER_THREAD3" -> "H_WORKER_THREAD", "pool-12" -> "pool"
func WorkerGroup(name string) string {
	group := name
	for len(group) > 0 {
		c := group[len(group)-1]
		if (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '#' {
			group = group[:len(group)-1]
			continue
		}
		break
	}
	if group == "" {
		return name
	}
	return group
}

// JobGroup returns the family a job name belongs to. Parallel chunks
// ("blur[0:64]") group under their loop name, tree jobs ("tree3/0.1")
// under their tree, anything else under its worker-style group.
func JobGroup(name string) string {
	if i := strings.IndexByte(name, '['); i > 0 && strings.HasSuffix(name, "]") {
		return name[:i]
	}
	if i := strings.IndexByte(name, '/'); i > 0 {
		return name[:i]
	}
	return WorkerGroup(name)
}

// SplitPath splits a dotted tree path ("0.2.1") into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segments []string) string {
	return strings.Join(segments, ".")
}

// Depth reports how many levels below the root a job name sits.
// "tree0/0" is 0, "tree0/0.2.1" is 2. Names without a path report 0.
func Depth(name string) int {
	i := strings.IndexByte(name, '/')
	if i < 0 {
		return 0
	}
	segs := SplitPath(name[i+1:])
	if len(segs) == 0 {
		return 0
	}
	return len(segs) - 1
}
