package main

import (
	"machine"
	"runtime"
	"time"
)

// idlePoll is how long a read sleeps while nothing is buffered.
const idlePoll = time.Millisecond

// port reads and writes ledserial packets over a machine.Serialer.
type port struct {
	machine.Serialer
}

// Read blocks until at least one byte is buffered, then reads as much as
// fits into b. Packet reads go through io.ReadFull, so a frame is assembled
// over as many reads as the host takes to send it.
func (p port) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	for p.Buffered() == 0 {
		time.Sleep(idlePoll)
	}

	n := min(p.Buffered(), len(b))
	for i := 0; i < n; i++ {
		c, err := p.ReadByte()
		if err != nil {
			return i, err
		}
		b[i] = c
	}

	runtime.Gosched()
	return n, nil
}

// resync drops everything buffered after a bad packet so that the next read
// starts on whatever the host sends next. The host resends on its ack
// timeout, so nothing is lost for good.
func (p port) resync() int {
	var dropped int
	for p.Buffered() > 0 {
		if _, err := p.ReadByte(); err != nil {
			break
		}
		dropped++
	}
	return dropped
}
