// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ioCollector exports the process I/O counters from /proc/[pid]/io. CPU,
// memory and fd counts already come from the default process collector,
// storage traffic does not.
type ioCollector struct {
	pid int

	readSyscalls  *prometheus.Desc
	writeSyscalls *prometheus.Desc
	readBytes     *prometheus.Desc
	writeBytes    *prometheus.Desc
}

func newIOCollector() *ioCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "process", name), help, nil, nil)
	}
	return &ioCollector{
		pid:           os.Getpid(),
		readSyscalls:  desc("read_syscalls_total", "Total number of read syscalls (read, pread)."),
		writeSyscalls: desc("write_syscalls_total", "Total number of write syscalls (write, pwrite)."),
		readBytes:     desc("read_bytes_total", "Total bytes fetched from the storage layer."),
		writeBytes:    desc("write_bytes_total", "Total bytes sent to the storage layer."),
	}
}

func (c *ioCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.readSyscalls
	ch <- c.writeSyscalls
	ch <- c.readBytes
	ch <- c.writeBytes
}

func (c *ioCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.readProcIO()
	if err != nil {
		return
	}
	counter := func(desc *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}
	counter(c.readSyscalls, stats["syscr"])
	counter(c.writeSyscalls, stats["syscw"])
	counter(c.readBytes, stats["read_bytes"])
	counter(c.writeBytes, stats["write_bytes"])
}

// readProcIO parses /proc/[pid]/io, lines of the form "syscr: 999".
func (c *ioCollector) readProcIO() (map[string]int64, error) {
	file, err := os.Open(fmt.Sprintf("/proc/%d/io", c.pid))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stats := make(map[string]int64)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		value, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			logger.Warn("unable to parse io value", "line", scanner.Text(), "err", err)
			continue
		}
		stats[strings.TrimSuffix(fields[0], ":")] = value
	}
	return stats, scanner.Err()
}

var ioRegistered atomic.Bool

func registerIOCollector() {
	if ioRegistered.CompareAndSwap(false, true) {
		prometheus.MustRegister(newIOCollector())
	}
}
