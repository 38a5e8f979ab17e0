// Package testutil provides utilities for testing.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteTree creates files under a fresh temp directory and returns its path.
// Keys are slash-separated paths relative to the root.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create fixture dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write fixture %s: %v", rel, err)
		}
	}
	return root
}

// HybridSysfs returns the files of an Intel hybrid sysfs tree.
func HybridSysfs(coreList, atomList string) map[string]string {
	return map[string]string{
		"devices/cpu_core/cpus": coreList + "\n",
		"devices/cpu_atom/cpus": atomList + "\n",
	}
}

// CapacitySysfs returns the files of an ARM sysfs tree where capacities[i]
// is the cpu_capacity of cpu i.
func CapacitySysfs(capacities ...int) map[string]string {
	files := map[string]string{
		"devices/system/cpu/online": fmt.Sprintf("0-%d\n", len(capacities)-1),
	}
	for i, c := range capacities {
		files[fmt.Sprintf("devices/system/cpu/cpu%d/cpu_capacity", i)] = fmt.Sprintf("%d\n", c)
	}
	return files
}

// CPUInfo returns a /proc tree with a cpuinfo file holding the given lines.
func CPUInfo(lines ...string) map[string]string {
	return map[string]string{"cpuinfo": strings.Join(lines, "\n") + "\n"}
}
