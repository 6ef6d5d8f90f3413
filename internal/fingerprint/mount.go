package fingerprint

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// isReadOnlyMount consults the mount table to decide whether dir lives
// on read-only storage. On platforms without /proc/mounts (anything
// but Linux) this always reports false; the write-probe in writable()
// is the real backstop there.
func isReadOnlyMount(dir string) bool {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return false
	}
	defer f.Close()

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	bestMatch := ""
	bestReadOnly := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		mountPoint := fields[1]
		opts := strings.Split(fields[3], ",")
		if !strings.HasPrefix(abs, mountPoint) {
			continue
		}
		if len(mountPoint) <= len(bestMatch) && bestMatch != "" {
			continue
		}
		bestMatch = mountPoint
		bestReadOnly = false
		for _, o := range opts {
			if o == "ro" {
				bestReadOnly = true
			}
		}
	}
	return bestReadOnly
}
