/*
Package channel provides Pipe, a closable multi-producer, single-consumer
channel modelled on a named pipe.

A Pipe separates the right to write from the right to read. Producers call
OpenWriter and receive a Writer handle; the single consumer calls OpenReader,
which blocks until the first writer has opened the pipe. The consumer never
races past early writes, and it never sees end-of-stream before a producer
has existed.

End-of-stream is reached when the last open writer closes. Values still in
the buffer are delivered first; Receive then returns ErrChannelClosed:

	p := channel.New[task.Record](64)

	w, _ := p.OpenWriter()
	go func() {
		defer w.Close()
		_ = w.Send(ctx, rec)
	}()

	r, _ := p.OpenReader(ctx)
	for {
		rec, err := r.Receive(ctx)
		if errors.Is(err, channel.ErrChannelClosed) {
			break
		}
		...
	}

Each Send is one channel send, so values from concurrent writers are never
interleaved; ordering is FIFO per writer with no cross-writer guarantee.

Close on the Pipe itself forces end-of-stream and releases a reader blocked
in OpenReader. The orchestrator uses it to tear down after a failed stage.
*/
package channel
