package smtp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/user/pricewatch/internal/repository"
)

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("tracker@shop.test", "me@shop.test", "Price Change Detected for Product", "from $10.00 to $12.00")
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if got := msg.GetGenHeader(mail.HeaderSubject); len(got) != 1 || got[0] != "Price Change Detected for Product" {
		t.Fatalf("subject = %v", got)
	}
	rcpts, err := msg.GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "me@shop.test" {
		t.Fatalf("recipients = %v, %v", rcpts, err)
	}

	if _, err := buildMessage("not an address", "me@shop.test", "s", "b"); err == nil {
		t.Fatal("expected an error for an invalid sender")
	}
}

func TestSendFailureIsDeliveryError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	n := NewMailNotifier(Settings{
		Host:     "127.0.0.1",
		Port:     port,
		Sender:   "tracker@shop.test",
		Password: "secret",
		Receiver: "me@shop.test",
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = n.Send(ctx, "subject", "body")
	if repository.Kind(err) != repository.KindDelivery {
		t.Fatalf("err = %v, want delivery error", err)
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	if err := n.Send(context.Background(), "Price check errors: 1 of 3 products failed", "report"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["subject"] != "Price check errors: 1 of 3 products failed" {
		t.Fatalf("unexpected log entries: %+v", entries)
	}
}
