package directory

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestPublish_SendsBeaconToEachConfiguredServer(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer pc.Close()

	p := New(Config{Port: 5000, Name: "Test Zone", Description: "desc"}, []string{pc.LocalAddr().String()}, func() int { return 3 })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		p.Run(ctx)
	}()
	defer cancel()

	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 128)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("reading beacon: %v", err)
	}
	if n < 11 {
		t.Fatalf("beacon too short: %d bytes", n)
	}
}

func TestPublish_SkipsUnreachableServerWithoutPanicking(t *testing.T) {
	p := New(Config{Port: 5000, Name: "Test Zone"}, []string{"127.0.0.1:1"}, func() int { return 0 })
	p.publish() // should not panic even if nothing is listening
}
