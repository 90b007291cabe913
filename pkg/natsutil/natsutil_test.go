package natsutil

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type testMsg struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type capture struct {
	msgs []*nats.Msg
	err  error
}

func (c *capture) PublishMsg(m *nats.Msg) error {
	c.msgs = append(c.msgs, m)
	return c.err
}

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestNatsHeaderCarrierNilHeader(t *testing.T) {
	carrier := (*natsHeaderCarrier)(&nats.Msg{})
	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}
}

func TestPublishCarriesTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	pub := &capture{}
	if err := Publish(ctx, pub, "advisor.runs", testMsg{Name: "run", Value: 3}); err != nil {
		t.Fatal(err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Subject != "advisor.runs" {
		t.Fatalf("published = %v", pub.msgs)
	}
	if pub.msgs[0].Header.Get("traceparent") == "" {
		t.Fatal("trace context not injected")
	}

	got, v, err := Decode[testMsg](pub.msgs[0])
	if err != nil || v.Name != "run" || v.Value != 3 {
		t.Fatalf("decode = %+v, %v", v, err)
	}
	if trace.SpanContextFromContext(got).TraceID() != sc.TraceID() {
		t.Fatal("trace context not extracted")
	}
}

func TestPublishError(t *testing.T) {
	pub := &capture{err: errors.New("closed")}
	if err := Publish(context.Background(), pub, "s", testMsg{}); err == nil {
		t.Fatal("expected error")
	}
	if err := Publish(context.Background(), pub, "s", make(chan int)); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestHandlerReportsMalformed(t *testing.T) {
	var handled []testMsg
	var failed int
	h := Handler(func(_ context.Context, m testMsg) { handled = append(handled, m) },
		func(*nats.Msg, error) { failed++ })

	h(&nats.Msg{Subject: "s", Data: []byte(`{"name":"ok","value":1}`)})
	h(&nats.Msg{Subject: "s", Data: []byte(`not json`)})

	if len(handled) != 1 || handled[0].Name != "ok" || failed != 1 {
		t.Fatalf("handled = %v failed = %d", handled, failed)
	}

	// nil onError drops silently
	Handler(func(context.Context, testMsg) {}, nil)(&nats.Msg{Data: []byte("{")})
}
