// Package preflight inspects the host before a run and reports what the
// batch is about to execute on. Nothing here is fatal: a missing GPU means a
// slow run, not a refused one.
package preflight

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/storenstra/facebatch/pkg/logging"
)

// Report summarizes the host hardware.
type Report struct {
	CPUModel   string `json:"cpu_model"`
	CPUThreads int    `json:"cpu_threads"`
	RAMBytes   uint64 `json:"ram_bytes"`
	HasGPU     bool   `json:"has_gpu"`
	GPUName    string `json:"gpu_name,omitempty"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
}

// Detect gathers the host report. Partial information is fine; fields that
// cannot be read stay zero.
func Detect() Report {
	report := Report{
		CPUThreads: runtime.NumCPU(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		report.CPUModel = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		report.RAMBytes = vm.Total
	}
	report.HasGPU, report.GPUName = detectNvidiaGPU()

	return report
}

// detectNvidiaGPU probes nvidia-smi the way the classic batch driver did.
func detectNvidiaGPU() (bool, string) {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return false, ""
	}
	out, err := exec.Command(path, "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		return false, ""
	}
	name := firstLine(string(out))
	if name == "" {
		return false, ""
	}
	return true, name
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			return s[:i]
		}
	}
	return s
}

// Log writes the report through the run logger, with a warning on CPU-only
// hosts and on concurrency settings that exceed what the hardware suggests.
func (r Report) Log(log *logging.Logger, concurrency int) {
	log.Info(fmt.Sprintf("Host: %s/%s, %s (%d threads), %.1f GB RAM",
		r.OS, r.Arch, r.CPUModel, r.CPUThreads, float64(r.RAMBytes)/(1024*1024*1024)))

	if r.HasGPU {
		log.Info(fmt.Sprintf("GPU detected: %s", r.GPUName))
	} else {
		log.Warn("No NVIDIA GPU detected - inference will run on CPU (very slow)")
	}

	if recommended := r.RecommendedConcurrency(); concurrency > recommended {
		log.Warn(fmt.Sprintf("Concurrency %d exceeds recommended %d for this host", concurrency, recommended))
	}
}

// RecommendedConcurrency suggests a worker count for this host. A single GPU
// serves one inference at a time; CPU-only hosts can fan out a little.
func (r Report) RecommendedConcurrency() int {
	if r.HasGPU {
		return 1
	}
	n := r.CPUThreads / 4
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}
