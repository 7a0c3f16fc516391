package virtual

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/thermsdo/pkg/can"
)

// Virtual CAN bus implementation with TCP primarily used for testing
// and for running the responder without CAN hardware.
// This needs a broker server to send CAN frames to all connected clients
// More information : https://github.com/windelbouwman/virtualcan

func init() {
	can.RegisterInterface("virtual", NewVirtualCanBus)
	can.RegisterInterface("virtualcan", NewVirtualCanBus)
}

const (
	writeTimeout = 10 * time.Millisecond
	readTimeout  = 200 * time.Millisecond
)

type Bus struct {
	logger *log.Entry
	// Held by the reception routine while reading
	mu sync.Mutex
	// Guards conn, receiveOwn and framehandler for senders. conn and
	// framehandler are only written with mu held as well
	stateMu      sync.Mutex
	channel      string
	conn         net.Conn
	receiveOwn   bool
	framehandler can.FrameListener
	stop         chan struct{}
	wg           sync.WaitGroup
	receiving    atomic.Bool
}

func NewVirtualCanBus(channel string) (can.Bus, error) {
	return &Bus{
		channel: channel,
		logger:  log.WithField("service", "[VIRTUAL]"),
	}, nil
}

// Helper function for serializing a CAN frame into the expected binary format
func serializeFrame(frame can.Frame) ([]byte, error) {
	buffer := new(bytes.Buffer)
	err := binary.Write(buffer, binary.BigEndian, frame)
	if err != nil {
		return nil, err
	}
	dataBytes := buffer.Bytes()
	frameBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(frameBytes, uint32(len(dataBytes)))
	frameBytes = append(frameBytes, dataBytes...)
	return frameBytes, nil
}

// Helper function for deserializing a CAN frame from expected binary format
func deserializeFrame(buffer []byte) (*can.Frame, error) {
	var frame can.Frame
	buf := bytes.NewBuffer(buffer)
	err := binary.Read(buf, binary.BigEndian, &frame)
	if err != nil {
		return nil, err
	}
	return &frame, nil
}

// "Connect" to server e.g. localhost:18000.
// Reception starts here if a handler was subscribed beforehand.
func (b *Bus) Connect(...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return nil
	}
	conn, err := net.Dial("tcp", b.channel)
	if err != nil {
		return err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return err
		}
	}
	b.stateMu.Lock()
	b.conn = conn
	b.stateMu.Unlock()
	b.logger.Infof("connected to broker %v", b.channel)
	if b.framehandler != nil {
		b.startReception()
	}
	return nil
}

// "Disconnect" from server, reception is stopped before closing
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
		b.wg.Wait()
	}
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.stateMu.Lock()
	b.conn = nil
	b.stateMu.Unlock()
	return err
}

// "Send" implementation of Bus interface
func (b *Bus) Send(frame can.Frame) error {
	b.stateMu.Lock()
	conn := b.conn
	receiveOwn := b.receiveOwn
	handler := b.framehandler
	b.stateMu.Unlock()
	// Local loopback
	if receiveOwn && handler != nil {
		handler.Handle(frame)
	} else if conn == nil {
		return errors.New("error : no active connection, abort send")
	}
	if conn == nil {
		return nil
	}
	frameBytes, err := serializeFrame(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(frameBytes)
	return err
}

// "Subscribe" implementation of Bus interface
func (b *Bus) Subscribe(framehandler can.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateMu.Lock()
	b.framehandler = framehandler
	b.stateMu.Unlock()
	if b.conn != nil {
		b.startReception()
	}
	return nil
}

// Start the reception goroutine if not already running, b.mu must be held
func (b *Bus) startReception() {
	if b.receiving.Load() {
		return
	}
	b.stop = make(chan struct{})
	b.receiving.Store(true)
	b.wg.Add(1)
	go b.handleReception(b.stop)
}

// Receive new CAN message
func (b *Bus) Recv() (*can.Frame, error) {
	if b.conn == nil {
		return nil, fmt.Errorf("error : no active connection, abort receive")
	}
	_ = b.conn.SetReadDeadline(time.Now().Add(readTimeout))
	headerBytes := make([]byte, 4)
	n, err := io.ReadFull(b.conn, headerBytes)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() && n == 0 {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("error deserializing : expected %v, got %v, err : %w", 4, n, err)
	}
	length := binary.BigEndian.Uint32(headerBytes)
	frameBytes := make([]byte, length)
	_ = b.conn.SetReadDeadline(time.Now().Add(readTimeout))
	n, err = io.ReadFull(b.conn, frameBytes)
	if err != nil {
		return nil, fmt.Errorf("error deserializing : expected %v, got %v, err : %w", length, n, err)
	}
	return deserializeFrame(frameBytes)
}

// Handle incoming traffic until stop is closed or the connection fails
func (b *Bus) handleReception(stop chan struct{}) {
	defer func() {
		b.receiving.Store(false)
		b.wg.Done()
	}()
	for {
		select {
		case <-stop:
			return
		default:
		}
		// Disconnect holds the lock while waiting for this routine to stop
		if !b.mu.TryLock() {
			time.Sleep(time.Millisecond)
			continue
		}
		frame, err := b.Recv()
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			// No message received, this is OK
		} else if err != nil {
			b.logger.Errorf("listening routine has closed because : %v", err)
			b.mu.Unlock()
			return
		} else if b.framehandler != nil {
			b.framehandler.Handle(*frame)
		}
		b.mu.Unlock()
	}
}

// Receiving own frames is useful when the bus is used without broker
func (b *Bus) SetReceiveOwn(receiveOwn bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.receiveOwn = receiveOwn
}
