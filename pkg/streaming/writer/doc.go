/*
Package writer provides AsyncWriter, a buffered io.Writer that flushes to an
underlying writer on a timer, when its buffer fills, on Flush and on Close.

The text log sink uses it so that relaying a completion record never waits
on a slow terminal or file:

	aw := writer.NewWithConfig(os.Stdout, writer.Config{
		BufferSize:    4096,
		FlushInterval: 100 * time.Millisecond,
	})
	defer aw.Close()

	fmt.Fprintln(aw, "[Logger] Completed: deploy (Priority 1)")

Failed flushes are retried MaxRetries times and then reported through
OnError and the Stats error counter.
*/
package writer
