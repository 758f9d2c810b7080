package llm

import (
	"context"
	"testing"
	"time"
)

func sendEvents(events ...StreamEvent) <-chan StreamEvent {
	ch := make(chan StreamEvent, len(events))
	for _, event := range events {
		ch <- event
	}
	close(ch)
	return ch
}

func TestStreamMergerMergesAllEvents(t *testing.T) {
	completion := sendEvents(
		NewTextDeltaEvent(0, "hello "),
		NewTextDeltaEvent(0, "world"),
		NewDoneEvent(0, FinishReasonStop),
	)
	auxiliary := sendEvents(
		NewTextDeltaEvent(1, "tool output"),
	)

	merged := MergeStreams(context.Background(), completion, auxiliary)

	var count int
	for range merged {
		count++
	}
	if count != 4 {
		t.Errorf("merged %d events, want 4", count)
	}
}

func TestStreamMergerClosesWhenSourcesDrain(t *testing.T) {
	merged := MergeStreams(context.Background(), sendEvents(NewDoneEvent(0, FinishReasonStop)))

	select {
	case <-time.After(time.Second):
		t.Fatal("merged stream did not close")
	case event, ok := <-merged:
		if !ok {
			t.Fatal("stream closed before delivering the event")
		}
		if !event.IsDone() {
			t.Errorf("unexpected event type %q", event.Type)
		}
	}

	if _, ok := <-merged; ok {
		t.Error("stream must close after the last source drains")
	}
}

func TestStreamMergerSkipsNilStreams(t *testing.T) {
	merged := MergeStreams(context.Background(), nil, nil, sendEvents(NewTextDeltaEvent(0, "only")))

	var texts []string
	for event := range merged {
		texts = append(texts, event.TextDelta())
	}
	if len(texts) != 1 || texts[0] != "only" {
		t.Errorf("merged events = %v", texts)
	}
}

func TestStreamMergerStop(t *testing.T) {
	blocked := make(chan StreamEvent)

	merger := NewStreamMerger(context.Background(), blocked, nil)
	out := merger.Start()

	done := make(chan struct{})
	go func() {
		merger.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not release the forwarding goroutines")
	}

	if _, ok := <-out; ok {
		t.Error("output must close after Stop")
	}
}

func TestStreamMergerPreservesPerStreamOrder(t *testing.T) {
	completion := sendEvents(
		NewTextDeltaEvent(0, "a"),
		NewTextDeltaEvent(0, "b"),
		NewTextDeltaEvent(0, "c"),
	)

	merged := MergeStreams(context.Background(), completion)

	var got string
	for event := range merged {
		got += event.TextDelta()
	}
	if got != "abc" {
		t.Errorf("events arrived out of order: %q", got)
	}
}
