package procstat

import (
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// runtimeExecutableNames lists the interpreter executable names the OS
// process table scan recognizes, per platform.
var runtimeExecutableNames = map[string][]string{
	"windows": {"python.exe", "python3.exe", "pythonw.exe"},
	"linux":   {"python3", "python"},
	"darwin":  {"python3", "python"},
}

// ScanOwnedProcesses returns the PIDs of OS processes whose executable name
// matches this platform's runtime names and whose first argument path
// begins with daemonsRoot. This aids recovering supervisor-owned processes
// by inspection (e.g. after an unclean supervisor restart), independent of
// the in-memory registry.
func ScanOwnedProcesses(daemonsRoot string) ([]int, error) {
	names := runtimeExecutableNames[runtime.GOOS]
	if len(names) == 0 {
		names = runtimeExecutableNames["linux"]
	}

	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var owned []int
	for _, p := range procs {
		exe, err := p.Name()
		if err != nil {
			continue
		}
		if !matchesAny(exe, names) {
			continue
		}
		cmdline, err := p.CmdlineSlice()
		if err != nil || len(cmdline) < 2 {
			continue
		}
		if strings.HasPrefix(cmdline[1], daemonsRoot) {
			owned = append(owned, int(p.Pid))
		}
	}
	return owned, nil
}

func matchesAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if name == c {
			return true
		}
	}
	return false
}
