package preflight

import (
	"fmt"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckHostResources snapshots the CPU and memory the worker pool will share
// with the transcoder. Informational: it always passes, the detail is for
// sizing workers.count.
func CheckHostResources() Result {
	const name = "Host resources"

	detail := fmt.Sprintf("%d logical CPUs", runtime.NumCPU())
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		detail = fmt.Sprintf("%s (%s)", detail, infos[0].ModelName)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		detail = fmt.Sprintf("%s, %s memory, %s available", detail,
			humanize.IBytes(vm.Total), humanize.IBytes(vm.Available))
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
