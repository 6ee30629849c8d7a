package server

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/desertthunder/pulse/internal/session"
)

// ReportingStatus is a snapshot of the server and its live sessions.
//
// It is what the /status endpoint serializes.
type ReportingStatus struct {
	Node           string         `json:"node"`
	Status         string         `json:"status"`
	Reported       int64          `json:"reported_at"`
	StartupTime    int64          `json:"startup_time"`
	SessionsOpened int64          `json:"sessions_opened"`
	Process        ProcessStatus  `json:"process"`
	Sessions       []session.Info `json:"sessions"`
}

// ProcessStatus describes the resource usage of the running server.
type ProcessStatus struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
}

// Status reports the current state of the server. Sessions are ordered oldest first.
func (s *Server) Status() ReportingStatus {
	status := "OK"
	if s.shuttingDown.Load() {
		status = "SHUTTING_DOWN"
	}

	return ReportingStatus{
		Node:           fmt.Sprintf("%s-%s-%s", platform(), env(), nodeName()),
		Status:         status,
		Reported:       time.Now().Unix(),
		StartupTime:    s.started.Unix(),
		SessionsOpened: s.manager.Opened(),
		Process:        processStatus(),
		Sessions:       s.manager.Snapshot(),
	}
}

// processStatus reads usage for this process. Fields that cannot be read are left zero.
func processStatus() ProcessStatus {
	ps := ProcessStatus{
		PID:        int32(os.Getpid()),
		Goroutines: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(ps.PID)
	if err != nil {
		return ps
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		ps.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		ps.CPUPercent = cpu
	}
	return ps
}

func platform() string {
	return "go"
}

// nodeName prefers $PULSE_NODE and falls back to the hostname.
func nodeName() string {
	if node := os.Getenv("PULSE_NODE"); node != "" {
		return node
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}

// env is the deployment environment, for reporting.
func env() string {
	if env := os.Getenv("PULSE_ENV"); env != "" {
		return env
	}
	return "development"
}
