//go:build pcap
// +build pcap

// Command replay-events replays a recorded PCAP of gateway datagrams to a
// UDP address, respecting the original capture pacing. Useful for driving a
// development occupancyd from a capture of real house traffic.
//
//	go run -tags pcap ./cmd/tools/replay-events -pcap house.pcap -to localhost:2370
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

var (
	pcapFile = flag.String("pcap", "", "Path to the PCAP file to replay (required)")
	target   = flag.String("to", "localhost:2370", "UDP address to send datagrams to")
	udpPort  = flag.Int("udp-port", 2370, "Gateway UDP port to filter on in the capture")
	speed    = flag.Float64("speed", 1.0, "Replay speed multiplier (1.0 = capture pacing, 0 = as fast as possible)")
	loop     = flag.Bool("loop", false, "Restart from the beginning when the capture ends")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("Error: -pcap flag is required")
	}

	addr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		log.Fatalf("Failed to resolve target address %s: %v", *target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *target, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		sent, err := replay(ctx, conn)
		if err != nil {
			if err == context.Canceled {
				return
			}
			log.Fatalf("Replay failed: %v", err)
		}
		log.Printf("Replay complete: %d datagrams sent", sent)
		if !*loop {
			return
		}
		log.Printf("Looping...")
	}
}

// replay streams one pass of the capture to conn, pacing each datagram by
// the gap to its predecessor's capture timestamp scaled by the speed
// multiplier.
func replay(ctx context.Context, conn *net.UDPConn) (int, error) {
	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		return 0, fmt.Errorf("failed to open PCAP file %s: %w", *pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", *udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return 0, fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	log.Printf("Replaying %s to %s (filter: %s, speed: %.1fx)", *pcapFile, *target, filterStr, *speed)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	sent := 0
	var lastCapture time.Time
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Replay stopping (%d datagrams sent)", sent)
			return sent, ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				log.Printf("End of capture after %v", time.Since(start))
				return sent, nil
			}

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			captureTime := packet.Metadata().Timestamp
			if !lastCapture.IsZero() && *speed > 0 {
				delay := time.Duration(float64(captureTime.Sub(lastCapture)) / *speed)
				if delay > 0 {
					select {
					case <-ctx.Done():
						return sent, ctx.Err()
					case <-time.After(delay):
					}
				}
			}
			lastCapture = captureTime

			if _, err := conn.Write(udp.Payload); err != nil {
				log.Printf("Failed to send datagram %d: %v", sent+1, err)
				continue
			}
			sent++

			if sent%1000 == 0 {
				log.Printf("Replay progress: %d datagrams", sent)
			}
		}
	}
}
