package ingest

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// PacketStats tracks datagram statistics with thread-safe operations
type PacketStats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	invalidCount int64
	eventCount   int64
	lastReset    time.Time
}

// NewPacketStats creates a new PacketStats instance
func NewPacketStats() *PacketStats {
	return &PacketStats{
		lastReset: time.Now(),
	}
}

// AddPacket increments packet count and byte count
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddInvalid increments the malformed datagram count
func (ps *PacketStats) AddInvalid() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.invalidCount++
}

// AddEvents increments the decoded event count
func (ps *PacketStats) AddEvents(count int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.eventCount += int64(count)
}

// GetAndReset returns current stats and resets counters
func (ps *PacketStats) GetAndReset() (packets int64, bytes int64, invalid int64, events int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets = ps.packetCount
	bytes = ps.byteCount
	invalid = ps.invalidCount
	events = ps.eventCount

	ps.packetCount = 0
	ps.byteCount = 0
	ps.invalidCount = 0
	ps.eventCount = 0
	ps.lastReset = now

	return
}

// LogStats logs the rates since the previous report, then resets
func (ps *PacketStats) LogStats() {
	packets, bytes, invalid, events, duration := ps.GetAndReset()
	if packets > 0 || invalid > 0 {
		packetsPerSec := float64(packets) / duration.Seconds()
		kbPerSec := float64(bytes) / duration.Seconds() / 1024
		eventsPerSec := float64(events) / duration.Seconds()

		logMsg := fmt.Sprintf("Ingest stats (/sec): %.1f packets, %.2f KB, %.1f events",
			packetsPerSec, kbPerSec, eventsPerSec)
		if invalid > 0 {
			logMsg += fmt.Sprintf(", %d malformed", invalid)
		}

		log.Print(logMsg)
	}
}
