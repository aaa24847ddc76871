//go:build !pcap
// +build !pcap

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "replay-events was built without PCAP support: rebuild with -tags=pcap")
	os.Exit(1)
}
