package telegraph

import (
	"context"
	"errors"
	"testing"
)

func TestMockAdapter_Lifecycle(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()
	if _, err := m.Listen(ctx); err == nil {
		t.Error("Listen before Connect should fail")
	}
	if err := m.Send(ctx, OutboundMessage{Text: "x"}); err == nil {
		t.Error("Send before Connect should fail")
	}
	if err := m.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	ch, err := m.Listen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	m.SimulateInbound(InboundMessage{Text: "hi"})
	if got := <-ch; got.Text != "hi" || got.Timestamp.IsZero() {
		t.Errorf("inbound = %+v", got)
	}
	if err := m.Send(ctx, OutboundMessage{Text: "one"}); err != nil {
		t.Fatal(err)
	}
	m.FailSends(errors.New("rate limited"))
	if err := m.Send(ctx, OutboundMessage{Text: "two"}); err == nil {
		t.Error("expected injected send error")
	}
	if m.SentCount() != 1 || m.AllSent()[0].Text != "one" {
		t.Errorf("sent = %+v", m.AllSent())
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Error("second Close should be a no-op")
	}
	if _, ok := <-ch; ok {
		t.Error("inbound channel should be closed")
	}
	if err := m.Connect(ctx); err == nil {
		t.Error("Connect after Close should fail")
	}
}
