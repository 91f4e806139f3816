// Package stats serves the host and activity summary polled by the
// dashboard's monitor panel.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"
)

const gib = 1 << 30

// System is one host sample. Sizes are GiB, network counters are
// cumulative bytes since boot.
type System struct {
	CPU     CPU     `json:"cpu"`
	RAM     Memory  `json:"ram"`
	Network Network `json:"network"`
	NAS     *Disk   `json:"nas"` // nil = no nas_path or unreadable
}

// CPU holds utilisation percent and package temperature in Celsius.
type CPU struct {
	Usage float64  `json:"usage"`
	Temp  *float64 `json:"temp"`
}

type Memory struct {
	Usage float64 `json:"usage"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

type Network struct {
	Down uint64 `json:"down"`
	Up   uint64 `json:"up"`
}

type Disk struct {
	Usage float64 `json:"usage"`
	Free  float64 `json:"free"`
	Total float64 `json:"total"`
}

// Collector samples the host through gopsutil.
type Collector struct {
	nasPath string

	cpuPercent   func(context.Context) ([]float64, error)
	temperatures func(context.Context) ([]sensors.TemperatureStat, error)
	memory       func(context.Context) (*mem.VirtualMemoryStat, error)
	netIO        func(context.Context) ([]psnet.IOCountersStat, error)
	diskUsage    func(context.Context, string) (*disk.UsageStat, error)
}

// NewCollector returns a Collector. nasPath is the mount reported as
// "nas"; empty disables it.
func NewCollector(nasPath string) *Collector {
	return &Collector{
		nasPath: nasPath,
		cpuPercent: func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, false)
		},
		temperatures: sensors.TemperaturesWithContext,
		memory:       mem.VirtualMemoryWithContext,
		netIO: func(ctx context.Context) ([]psnet.IOCountersStat, error) {
			return psnet.IOCountersWithContext(ctx, false)
		},
		diskUsage: disk.UsageWithContext,
	}
}

// Collect samples every metric. A failing metric is left zero (or nil)
// and its error joined into the result; the sample is still usable.
func (c *Collector) Collect(ctx context.Context) (System, error) {
	var (
		s    System
		errs []error
	)

	if pct, err := c.cpuPercent(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	} else if len(pct) > 0 {
		s.CPU.Usage = round(pct[0])
	}

	// sensors reports partial results alongside warnings on most hosts
	if temps, _ := c.temperatures(ctx); len(temps) > 0 {
		s.CPU.Temp = cpuTemp(temps)
	}

	if vm, err := c.memory(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		s.RAM = Memory{Usage: round(vm.UsedPercent), Used: toGiB(vm.Used), Total: toGiB(vm.Total)}
	}

	if io, err := c.netIO(ctx); err != nil {
		errs = append(errs, fmt.Errorf("network: %w", err))
	} else {
		for _, n := range io {
			s.Network.Down += n.BytesRecv
			s.Network.Up += n.BytesSent
		}
	}

	if c.nasPath != "" {
		if du, err := c.diskUsage(ctx, c.nasPath); err != nil {
			errs = append(errs, fmt.Errorf("nas %s: %w", c.nasPath, err))
		} else {
			s.NAS = &Disk{Usage: round(du.UsedPercent), Free: toGiB(du.Free), Total: toGiB(du.Total)}
		}
	}

	return s, errors.Join(errs...)
}

// cpuSensors lists sensor key fragments in preference order.
var cpuSensors = []string{"package", "tctl", "coretemp", "k10temp", "cpu", "soc"}

func cpuTemp(temps []sensors.TemperatureStat) *float64 {
	for _, frag := range cpuSensors {
		for _, t := range temps {
			if t.Temperature > 0 && strings.Contains(strings.ToLower(t.SensorKey), frag) {
				v := round(t.Temperature)
				return &v
			}
		}
	}
	return nil
}

func toGiB(b uint64) float64 { return round(float64(b) / gib) }

func round(v float64) float64 { return math.Round(v*100) / 100 }
