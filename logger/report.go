package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type componentStat struct {
	errors int64
	warns  int64
}

var (
	reportsBuilt      int64
	anomaliesDetected int64
	archiveWrites     int64
	insightPublishes  int64
	platformCalls     int64
	componentStats    sync.Map // map[string]*componentStat
)

func recordWarn(component string) {
	v, _ := componentStats.LoadOrStore(component, &componentStat{})
	atomic.AddInt64(&v.(*componentStat).warns, 1)
}

func recordError(component string) {
	v, _ := componentStats.LoadOrStore(component, &componentStat{})
	atomic.AddInt64(&v.(*componentStat).errors, 1)
}

// IncrementReportsBuilt records a completed sales report build.
func IncrementReportsBuilt() {
	atomic.AddInt64(&reportsBuilt, 1)
}

// IncrementAnomaliesDetected records flagged anomaly records.
func IncrementAnomaliesDetected(n int) {
	atomic.AddInt64(&anomaliesDetected, int64(n))
}

// IncrementArchiveWrites records a parquet batch upload.
func IncrementArchiveWrites() {
	atomic.AddInt64(&archiveWrites, 1)
}

// IncrementInsightPublishes records insight records sent to the sink.
func IncrementInsightPublishes(n int) {
	atomic.AddInt64(&insightPublishes, int64(n))
}

// IncrementPlatformCalls records outbound platform API calls.
func IncrementPlatformCalls() {
	atomic.AddInt64(&platformCalls, 1)
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	componentData := map[string]map[string]int64{}
	componentStats.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*componentStat)
		componentData[name] = map[string]int64{
			"errors": atomic.LoadInt64(&cs.errors),
			"warns":  atomic.LoadInt64(&cs.warns),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"reports_built":      atomic.LoadInt64(&reportsBuilt),
		"anomalies_detected": atomic.LoadInt64(&anomaliesDetected),
		"archive_writes":     atomic.LoadInt64(&archiveWrites),
		"insight_publishes":  atomic.LoadInt64(&insightPublishes),
		"platform_calls":     atomic.LoadInt64(&platformCalls),
		"goroutines":         runtime.NumGoroutine(),
		"cpu_percent":        cpuPct,
		"memory_mb":          int64(memStats.Used) / 1024 / 1024,
		"disk_mb":            int64(diskStats.Used) / 1024 / 1024,
		"components":         componentData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ReportsBuilt"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&reportsBuilt)))},
		cwtypes.MetricDatum{MetricName: aws.String("AnomaliesDetected"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&anomaliesDetected)))},
		cwtypes.MetricDatum{MetricName: aws.String("ArchiveWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&archiveWrites)))},
		cwtypes.MetricDatum{MetricName: aws.String("InsightPublishes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&insightPublishes)))},
		cwtypes.MetricDatum{MetricName: aws.String("PlatformCalls"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&platformCalls)))},
	)

	for name, stats := range componentData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ComponentErrors"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Component"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["errors"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ComponentWarns"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Component"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["warns"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
