package stream

import "bytes"

// recordDelimiter separates records in the SSE text protocol.
var recordDelimiter = []byte("\n\n")

// decoder accumulates raw chunks and splits out complete records. The buffer
// holds exactly the unconsumed tail of all bytes received so far: never a
// complete, already-emitted record. A partial trailing record is kept as
// bytes rather than text, so a chunk boundary falling inside a multi-byte
// UTF-8 character never produces a garbled string.
type decoder struct {
	buf []byte
}

// feed appends one chunk and returns every record it completed, in order.
// Empty records from consecutive delimiters are filtered out; an empty chunk
// is a no-op. Chunks must be fed strictly sequentially.
func (d *decoder) feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var records []string
	for {
		idx := bytes.Index(d.buf, recordDelimiter)
		if idx < 0 {
			break
		}
		if idx > 0 {
			records = append(records, string(d.buf[:idx]))
		}
		d.buf = d.buf[idx+len(recordDelimiter):]
	}
	return records
}

// pending returns the number of buffered bytes not yet forming a record.
// At end-of-stream a non-empty tail is a benign truncation, not an error:
// termination is signaled by explicit done/error events, not by close.
func (d *decoder) pending() int {
	return len(d.buf)
}
