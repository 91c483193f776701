package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// healthHandler reports the store status and system-level metrics.
func (s *Server) healthHandler(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	var db map[string]string
	if s.db != nil {
		db = s.db.Health()
		if db["status"] == "down" {
			status = http.StatusServiceUnavailable
		}
	} else {
		db = map[string]string{"status": "up", "driver": "memory"}
	}

	return c.JSON(status, map[string]interface{}{
		"status":   db["status"],
		"database": db,
		"runtime":  runtimeStats(ctx, s.startedAt),
	})
}

func runtimeStats(ctx context.Context, startedAt time.Time) map[string]interface{} {
	out := map[string]interface{}{
		"uptime":     time.Since(startedAt).Round(time.Second).String(),
		"start_time": startedAt.Format(time.RFC3339),
	}

	if hInfo, err := host.InfoWithContext(ctx); err == nil {
		out["os"] = hInfo.OS
		out["platform"] = hInfo.Platform
		out["hostname"] = hInfo.Hostname
	}

	// Instant sample, no measuring interval.
	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		out["cpu_usage_percent"] = fmt.Sprintf("%.2f%%", cpuPercent[0])
	}

	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out["memory"] = map[string]string{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(v.Total)/1024/1024/1024),
			"used_percent": fmt.Sprintf("%.2f%%", v.UsedPercent),
		}
	}

	if d, err := disk.UsageWithContext(ctx, "/"); err == nil {
		out["disk"] = map[string]string{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(d.Total)/1024/1024/1024),
			"used_percent": fmt.Sprintf("%.2f%%", d.UsedPercent),
		}
	}
	return out
}
