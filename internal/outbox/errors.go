package outbox

import "errors"

// ErrBufferFull is returned by Append when the buffer is at capacity. The new
// event is dropped; events already buffered are kept.
var ErrBufferFull = errors.New("event buffer full")
