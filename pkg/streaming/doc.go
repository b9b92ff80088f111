/*
Package streaming groups the transport primitives that carry completion
records from the executor pool to their consumers:

  - channel: Pipe, a multi-producer, single-consumer channel with named pipe
    open and close semantics
  - writer: AsyncWriter, a buffered io.Writer with background flushing
*/
package streaming
