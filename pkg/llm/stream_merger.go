// Fan-in of streaming completion channels.
package llm

import (
	"context"
	"sync"
)

// StreamMerger interleaves a completion stream with auxiliary event
// streams, such as tool execution progress, into one channel. Events
// keep their per-stream order; ordering across streams follows arrival.
type StreamMerger struct {
	streams []<-chan StreamEvent
	output  chan StreamEvent
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// NewStreamMerger creates a merger over the completion stream and any
// auxiliary streams. Nil channels are skipped.
func NewStreamMerger(ctx context.Context, completion <-chan StreamEvent, auxiliary []<-chan StreamEvent) *StreamMerger {
	ctx, cancel := context.WithCancel(ctx)

	streams := make([]<-chan StreamEvent, 0, len(auxiliary)+1)
	if completion != nil {
		streams = append(streams, completion)
	}
	for _, stream := range auxiliary {
		if stream != nil {
			streams = append(streams, stream)
		}
	}

	return &StreamMerger{
		streams: streams,
		output:  make(chan StreamEvent, 10),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins merging and returns the output channel. The channel
// closes once every source stream is drained. Start is idempotent.
func (sm *StreamMerger) Start() <-chan StreamEvent {
	sm.once.Do(func() {
		sm.wg.Add(len(sm.streams))
		for _, stream := range sm.streams {
			go sm.forward(stream)
		}

		go func() {
			sm.wg.Wait()
			sm.cancel()
			close(sm.output)
		}()
	})

	return sm.output
}

// Stop aborts merging and waits for the forwarding goroutines.
func (sm *StreamMerger) Stop() {
	sm.cancel()
	sm.wg.Wait()
}

func (sm *StreamMerger) forward(stream <-chan StreamEvent) {
	defer sm.wg.Done()

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return
			}
			select {
			case sm.output <- event:
			case <-sm.ctx.Done():
				return
			}
		case <-sm.ctx.Done():
			return
		}
	}
}

// MergeStreams merges a completion stream with auxiliary streams into
// a single channel.
func MergeStreams(ctx context.Context, completion <-chan StreamEvent, auxiliary ...<-chan StreamEvent) <-chan StreamEvent {
	merger := NewStreamMerger(ctx, completion, auxiliary)
	return merger.Start()
}
