package hardware

import (
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// ParseCPUList parses the kernel cpulist format ("0-3,8,10-11") into
// ascending CPU ids. An empty or whitespace-only list yields no ids.
func ParseCPUList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	seen := make(map[int]struct{})
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, hi = part[:i], part[i+1:]
		}

		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeTopologyError, "invalid cpulist "+strconv.Quote(s), err)
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeTopologyError, "invalid cpulist "+strconv.Quote(s), err)
		}
		if start < 0 || end < start {
			return nil, apperrors.Newf(apperrors.CodeTopologyError, "invalid cpulist range %q", part)
		}

		for id := start; id <= end; id++ {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)
	return ids, nil
}
