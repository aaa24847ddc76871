//go:build pcap
// +build pcap

package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ReadPCAPFile replays recorded gateway datagrams from a PCAP file through
// the handler at full speed. Unstamped events are stamped with the packet
// capture time so replayed history lands on the recorded timeline.
// This function is only available when building with the 'pcap' build tag.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, handler EventHandler, stats PacketStatsInterface) error {
	if stats == nil {
		stats = &noopStats{}
	}

	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	// Only capture UDP packets on the gateway port
	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	log.Printf("PCAP BPF filter set: %s", filterStr)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	eventCount := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			log.Printf("PCAP reader stopping due to context cancellation (processed %d packets)", packetCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				// End of PCAP file
				elapsed := time.Since(startTime)
				log.Printf("PCAP replay complete: %d packets, %d events in %v", packetCount, eventCount, elapsed)
				return nil
			}

			packetCount++

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue // Skip non-UDP packets (shouldn't happen with BPF filter)
			}

			udp, ok := udpLayer.(*layers.UDP)
			if !ok {
				continue
			}

			payload := udp.Payload
			if len(payload) == 0 {
				continue
			}

			stats.AddPacket(len(payload))

			event, err := DecodeEvent(payload)
			if err != nil {
				stats.AddInvalid()
				log.Printf("Error decoding PCAP packet %d: %v", packetCount, err)
				continue
			}

			// Prefer capture timestamps over receipt time during replay
			if event.Unix == 0 {
				ts := packet.Metadata().Timestamp
				event.Unix = float64(ts.UnixNano()) / 1e9
			}

			stats.AddEvents(1)
			eventCount++

			if handler != nil {
				if err := handler.HandleEvent(ctx, event); err != nil {
					log.Printf("Error handling PCAP packet %d: %v", packetCount, err)
					continue
				}
			}

			// Log progress periodically
			if packetCount%10000 == 0 {
				elapsed := time.Since(startTime)
				log.Printf("PCAP progress: %d packets processed in %v (%.0f pkt/s)",
					packetCount, elapsed, float64(packetCount)/elapsed.Seconds())
			}
		}
	}
}
