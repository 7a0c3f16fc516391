//go:build linux

package socketcanraw

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/samsamfire/thermsdo/pkg/can"
)

const (
	FrameSize         = 16
	DefaultRcvTimeout = 100 * time.Millisecond
)

func init() {
	can.RegisterInterface("socketcanraw", NewSocketCanBus)
}

type SocketcanBus struct {
	f          *os.File
	fd         int
	mu         sync.Mutex
	rxCallback can.FrameListener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     *log.Entry
}

// Create a new SocketCAN bus. This expects the CAN channel to be up.
// e.g. running "ip a" should show can0 or something similar.
func NewSocketCanBus(channel string) (can.Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket : %v", err)
	}
	tv := unix.NsecToTimeval(DefaultRcvTimeout.Nanoseconds())
	if err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set read timeout %v", err)
	}
	if err = unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &SocketcanBus{
		fd:     fd,
		f:      os.NewFile(uintptr(fd), channel),
		logger: log.WithField("service", "[SOCKETCANRAW]"),
	}, nil
}

// "Connect" implementation of Bus interface
func (s *SocketcanBus) Connect(...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processIncoming(ctx)
	}()
	return nil
}

// "Disconnect" implementation of Bus interface, the socket is closed
func (s *SocketcanBus) Disconnect() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	return s.f.Close()
}

// "Send" implementation of Bus interface
func (s *SocketcanBus) Send(frame can.Frame) error {
	n, err := s.f.Write(marshalFrame(frame))
	if err != nil {
		return err
	}
	if n != FrameSize {
		return fmt.Errorf("short write : %v bytes out of %v", n, FrameSize)
	}
	return nil
}

// "Subscribe" implementation of Bus interface
func (s *SocketcanBus) Subscribe(rxCallback can.FrameListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxCallback = rxCallback
	return nil
}

// process incoming frames. This is meant to be run inside of a goroutine
func (s *SocketcanBus) processIncoming(ctx context.Context) {
	rxFrame := make([]byte, FrameSize)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("exiting CAN bus reception, closed")
			return
		default:
		}
		n, err := unix.Read(s.fd, rxFrame)
		if err == unix.EAGAIN || err == unix.EINTR {
			// Receive timeout, check for cancellation
			continue
		}
		if err != nil || n != FrameSize {
			s.logger.Errorf("exiting CAN bus reception : read %v bytes, %v", n, err)
			return
		}
		s.mu.Lock()
		callback := s.rxCallback
		s.mu.Unlock()
		if callback != nil {
			callback.Handle(unmarshalFrame(rxFrame))
		}
	}
}

// Enable own reception on the bus. CAN be useful when testing for example
func (s *SocketcanBus) SetReceiveOwn(enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	s.logger.Infof("setting option 'CAN_RAW_RECV_OWN_MSGS' to %v", enabled)
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, enabledInt)
}

// SetIDFilter only lets standard frames with the given identifiers through
func (s *SocketcanBus) SetIDFilter(ids ...uint32) error {
	filters := make([]unix.CanFilter, len(ids))
	for i, id := range ids {
		filters[i] = unix.CanFilter{Id: id & can.CanSffMask, Mask: can.CanSffMask | can.CanEffFlag | can.CanRtrFlag}
	}
	s.logger.Infof("setting option 'CAN_RAW_FILTER' to %v", filters)
	return unix.SetsockoptCanRawFilter(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
}

// struct can_frame layout, ID is in host byte order
func marshalFrame(frame can.Frame) []byte {
	raw := make([]byte, FrameSize)
	binary.NativeEndian.PutUint32(raw[0:4], frame.ID)
	raw[4] = frame.DLC
	raw[5] = frame.Flags
	copy(raw[8:], frame.Data[:])
	return raw
}

func unmarshalFrame(raw []byte) can.Frame {
	frame := can.Frame{
		ID:    binary.NativeEndian.Uint32(raw[0:4]),
		DLC:   raw[4],
		Flags: raw[5],
	}
	copy(frame.Data[:], raw[8:FrameSize])
	return frame
}
