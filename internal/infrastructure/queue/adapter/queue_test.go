package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/port"
)

func TestParseQueueWeights(t *testing.T) {
	got := parseQueueWeights(" critical=6, default=3,low ,=4,bad=x,,")
	want := map[string]int{"critical": 6, "default": 3, "low": 1, "bad": 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("queue %s: got %d, want %d", k, got[k], v)
		}
	}
	if len(parseQueueWeights("")) != 0 {
		t.Fatalf("empty input must yield no queues")
	}
}

func TestAsynqConfigRequiresRedis(t *testing.T) {
	if _, err := NewAsynqClient(AsynqConfig{}); err == nil {
		t.Fatalf("expected error without redis url")
	}
	if _, err := NewAsynqServer(AsynqConfig{RedisURL: "://bad"}, nil); err == nil {
		t.Fatalf("expected error for malformed redis url")
	}
}

func TestInlineQueueRunsHandler(t *testing.T) {
	q := NewInlineQueue()
	var seen []string
	q.Register("echo", func(_ context.Context, task port.Task) error {
		seen = append(seen, string(task.Payload))
		return nil
	})
	q.Register("fail", func(context.Context, port.Task) error { return errors.New("boom") })

	ctx := context.Background()
	if id, err := q.Enqueue(ctx, port.Task{Type: "echo", Payload: []byte("hi")}); err != nil || id == "" {
		t.Fatalf("enqueue: %q %v", id, err)
	}
	if len(seen) != 1 || seen[0] != "hi" {
		t.Fatalf("handler not run: %v", seen)
	}
	if _, err := q.Enqueue(ctx, port.Task{Type: "fail"}); err == nil {
		t.Fatalf("expected handler error")
	}
	if _, err := q.Enqueue(ctx, port.Task{Type: "missing"}); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}
