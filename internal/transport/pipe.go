package transport

import (
	"bufio"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pipe carries NUL-framed messages over an io.ReadWriteCloser, the framing
// spoken on --remote-debugging-pipe file descriptors. It is also the
// transport of choice for tests, running over net.Pipe or an in-memory pair.
type Pipe struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	log    *zap.Logger

	writeMu sync.Mutex

	msgs chan Message
	done chan struct{}

	closeOnce sync.Once
}

// NewPipe wraps rwc in a NUL-framed transport and starts reading.
func NewPipe(rwc io.ReadWriteCloser, log *zap.Logger) *Pipe {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipe{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
		log:    log,
		msgs:   make(chan Message, 64),
		done:   make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *Pipe) readLoop() {
	defer close(p.done)
	defer close(p.msgs)
	for {
		frame, err := p.reader.ReadBytes(0)
		if len(frame) > 1 {
			data := frame
			if data[len(data)-1] == 0 {
				data = data[:len(data)-1]
			}
			p.msgs <- Message{Data: data, ReceivedAt: time.Now()}
		}
		if err != nil {
			p.log.Debug("pipe ended", zap.Error(err))
			return
		}
	}
}

// Send writes one message followed by the NUL frame terminator.
func (p *Pipe) Send(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.rwc.Write(data); err != nil {
		return err
	}
	_, err := p.rwc.Write([]byte{0})
	return err
}

func (p *Pipe) Messages() <-chan Message {
	return p.msgs
}

func (p *Pipe) Done() <-chan struct{} {
	return p.done
}

// Close closes the underlying pipe and returns after the read loop exits.
func (p *Pipe) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.rwc.Close()
	})
	<-p.done
	return err
}
