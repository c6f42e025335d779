package apns_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	apns "github.com/mhaga/apns-core"
	"github.com/mhaga/apns-core/mock"
	"github.com/mhaga/apns-core/notification"
	"github.com/mhaga/apns-core/notification/priority"
	"github.com/mhaga/apns-core/payload"
)

var benchmarkPayloads = map[string]*apns.Payload{
	"Minimal": {
		APS: payload.APS{Alert: "Hi"},
	},
	"FullAlert": {
		APS: payload.APS{
			Alert: payload.Alert{
				Title:    "Game Request",
				Subtitle: "Five Card Draw",
				Body:     "Bob wants to play poker",
				LocKey:   "GAME_PLAY_REQUEST_FORMAT",
				LocArgs:  []string{"Bob"},
			},
			Badge: 1,
			Sound: "default",
		},
		CustomData: map[string]any{"game_id": "abc123", "level": 5},
	},
	"Background": {
		APS: payload.APS{ContentAvailable: 1},
		CustomData: map[string]any{
			"update_type": "location",
			"lat":         35.6895,
			"lng":         139.6917,
		},
	},
	"VoIP": {
		APS: payload.APS{Alert: "Incoming call", Sound: "ringtone.caf"},
		CustomData: map[string]any{
			"call_id":    "call-xyz",
			"caller":     "Alice",
			"video_call": true,
		},
	},
}

const benchmarkDeviceToken = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

func benchmarkClientSend(b *testing.B, pl *apns.Payload) {
	b.Helper()

	addr := startMockServer(b, mock.AcceptAllHandler{})
	cert := testCert(b)
	cli, err := apns.NewClientWithCert(&cert,
		apns.WithAddr(addr),
		apns.WithCapacity(4),
		apns.WithInsecureSkipVerify(),
	)
	if err != nil {
		b.Fatalf("NewClientWithCert failed: %v", err)
	}
	defer cli.Close()

	expiration := notification.NewEpochTime(time.Now().Add(time.Hour))
	n := &apns.Notification{
		BundleID:    "com.example.benchmark",
		DeviceToken: benchmarkDeviceToken,
		Type:        notification.Alert,
		Expiration:  expiration,
		Priority:    priority.Immediate,
		Payload:     pl,
	}

	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := cli.Send(ctx, n); err != nil {
				b.Fatalf("Client.Send failed: %v", err)
			}
		}
	})
}

func BenchmarkClient_Send(b *testing.B) {
	for name, pl := range benchmarkPayloads {
		b.Run(name, func(b *testing.B) {
			benchmarkClientSend(b, pl)
		})
	}
}

func benchmarkClientPushMulti(b *testing.B, pl *apns.Payload, numTokens int) {
	b.Helper()

	addr := startMockServer(b, mock.AcceptAllHandler{})
	cert := testCert(b)
	cli, err := apns.NewClientWithCert(&cert,
		apns.WithAddr(addr),
		apns.WithCapacity(4),
		apns.WithInsecureSkipVerify(),
	)
	if err != nil {
		b.Fatalf("NewClientWithCert failed: %v", err)
	}
	defer cli.Close()

	n := &apns.Notification{
		BundleID: "com.example.benchmark.multi",
		Type:     notification.Alert,
		Priority: priority.Immediate,
		Payload:  pl,
	}

	tokens := make([]string, numTokens)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%064x", i+1)
	}

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cli.PushMulti(ctx, n, tokens); err != nil {
			b.Fatalf("PushMulti failed: %v", err)
		}
	}
}

func BenchmarkClient_PushMulti(b *testing.B) {
	pl := benchmarkPayloads["Minimal"]
	for _, count := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("%d_tokens", count), func(b *testing.B) {
			benchmarkClientPushMulti(b, pl, count)
		})
	}
}
