/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package transceiver

import (
	"context"
	"encoding"
	"sync/atomic"
	"time"

	"github.com/superkkt/forwarder/openflow"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("transceiver")
)

const (
	// Allowed idle time before we send an echo request to a switch.
	maxIdleTime = 10 * time.Second
	// I/O timeouts (These timeouts should be less than maxIdleTime).
	readTimeout  = 1 * time.Second
	writeTimeout = readTimeout * 2
)

type Writer interface {
	Write(msg encoding.BinaryMarshaler) error
}

type Handler interface {
	OnHello(Writer, *openflow.Hello) error
	OnError(Writer, *openflow.Error) error
	OnFeaturesReply(Writer, *openflow.FeaturesReply) error
	OnPortStatus(Writer, *openflow.PortStatus) error
	OnFlowRemoved(Writer, *openflow.FlowRemoved) error
	OnPacketIn(Writer, *openflow.PacketIn) error
}

type Transceiver struct {
	stream      *Stream
	handler     Handler
	xid         uint32
	pingCounter uint32
}

func NewTransceiver(stream *Stream, handler Handler) *Transceiver {
	if stream == nil {
		panic("stream is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}

	return &Transceiver{
		stream:  stream,
		handler: handler,
	}
}

// NewXID returns a new transaction ID for an outgoing message.
func (r *Transceiver) NewXID() uint32 {
	return atomic.AddUint32(&r.xid, 1)
}

func isTimeout(err error) bool {
	v, ok := errors.Cause(err).(interface {
		Timeout() bool
	})

	return ok && v.Timeout()
}

func isTemporaryErr(err error) bool {
	e, ok := errors.Cause(err).(interface {
		Temporary() bool
	})

	return ok && e.Temporary()
}

func (r *Transceiver) sendEchoRequest() error {
	if atomic.LoadUint32(&r.pingCounter) > 2 {
		return errors.New("device does not respond to our echo request")
	}

	echo := openflow.NewEchoRequest(r.NewXID())
	// We use current timestamp to check network latency between our controller and a switch.
	timestamp, err := time.Now().GobEncode()
	if err != nil {
		return err
	}
	echo.Data = timestamp

	if err := r.Write(echo); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REQUEST message")
	}
	atomic.AddUint32(&r.pingCounter, 1)

	return nil
}

func (r *Transceiver) Run(ctx context.Context) error {
	defer logger.Infof("transceiver is closed: %v", r.stream.RemoteAddr())
	r.stream.SetReadTimeout(readTimeout)
	r.stream.SetWriteTimeout(writeTimeout)

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	reader := r.runReader(readerCtx)

	packet, err := r.negotiate(ctx, reader)
	if err != nil {
		return errors.Wrap(err, "failed to negotiate the protocol version")
	}

	// Infinite loop
	for {
		if err := r.dispatch(packet); err != nil {
			if !isTemporaryErr(err) {
				return err
			}
			// Ignore the temporary error. Just log the error and keep go on.
			logger.Errorf("failed to dispatch the packet: %v", err)
		}

		var ok bool
		select {
		case <-ctx.Done():
			logger.Info("context done")
			return nil
		case packet, ok = <-reader:
			if !ok {
				logger.Info("the reader channel is closed")
				return nil
			}
		}
	}
}

func (r *Transceiver) negotiate(ctx context.Context, reader <-chan []byte) (packet []byte, err error) {
	select {
	case <-ctx.Done():
		return nil, errors.New("context done")
	case <-time.After(30 * time.Second):
		return nil, errors.New("inactive for too long")
	case packet, ok := <-reader:
		if !ok {
			return nil, errors.New("the reader channel is closed")
		}
		// The first message should be HELLO.
		if packet[1] != openflow.OFPT_HELLO {
			return nil, errors.New("missing HELLO message")
		}
		if packet[0] < openflow.OF10_VERSION {
			return nil, openflow.ErrUnsupportedVersion
		}
		logger.Infof("negotiated to openflow version 1.0 (offered=%v)", packet[0])

		return packet, nil
	}
}

func (r *Transceiver) runReader(ctx context.Context) <-chan []byte {
	c := make(chan []byte, 4096)
	go func() {
		// The channel c will be closed when this goroutine returns in order to notice the connection has been closed.
		defer close(c)

		lastActivated := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			packet, err := r.readPacket()
			if err != nil {
				if !isTimeout(err) {
					logger.Errorf("failed to read the next packet: %v", err)
					return
				}
				// Timeout occurrs. Send a ping request if necessary.
				if time.Now().After(lastActivated.Add(maxIdleTime)) {
					if err := r.sendEchoRequest(); err != nil {
						logger.Errorf("failed to send an echo request: %v", err)
						return
					}
					lastActivated = time.Now()
				}
				continue
			}
			lastActivated = time.Now()

			ok, err := r.handleEcho(packet)
			if err != nil {
				logger.Errorf("failed to handle the echo request or response: %v", err)
				return
			}
			if ok {
				continue
			}

			select {
			case c <- packet:
			default:
				// Drop the packet if we cannot immediately carry it.
				logger.Error("transceiver buffer full: drop the incoming packet!")
			}
		}
	}()

	return c
}

func (r *Transceiver) readPacket() ([]byte, error) {
	return r.stream.ReadFrame()
}

func (r *Transceiver) Write(msg encoding.BinaryMarshaler) error {
	packet, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = r.stream.Write(packet)

	return err
}

func (r *Transceiver) handleEcho(packet []byte) (ok bool, err error) {
	switch packet[1] {
	case openflow.OFPT_ECHO_REQUEST:
		req := new(openflow.Echo)
		if err := req.UnmarshalBinary(packet); err != nil {
			return true, err
		}
		reply := openflow.NewEchoReply(req.TransactionID())
		reply.Data = req.Data
		if err := r.Write(reply); err != nil {
			return true, errors.Wrap(err, "failed to send ECHO_REPLY message")
		}
		return true, nil
	case openflow.OFPT_ECHO_REPLY:
		reply := new(openflow.Echo)
		if err := reply.UnmarshalBinary(packet); err != nil {
			return true, err
		}
		timestamp := time.Time{}
		if err := timestamp.GobDecode(reply.Data); err == nil {
			logger.Debugf("transceiver latency: %v", time.Since(timestamp))
		}
		atomic.StoreUint32(&r.pingCounter, 0)
		return true, nil
	default:
		return false, nil
	}
}

func (r *Transceiver) dispatch(packet []byte) error {
	if packet[0] != openflow.OF10_VERSION && packet[1] != openflow.OFPT_HELLO {
		return errors.Errorf("mis-matched OpenFlow version: packet=%v", packet[0])
	}

	switch packet[1] {
	case openflow.OFPT_HELLO:
		msg := new(openflow.Hello)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.handler.OnHello(r, msg)
	case openflow.OFPT_ERROR:
		msg := new(openflow.Error)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.handler.OnError(r, msg)
	case openflow.OFPT_FEATURES_REPLY:
		msg := new(openflow.FeaturesReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.handler.OnFeaturesReply(r, msg)
	case openflow.OFPT_PORT_STATUS:
		msg := new(openflow.PortStatus)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.handler.OnPortStatus(r, msg)
	case openflow.OFPT_FLOW_REMOVED:
		msg := new(openflow.FlowRemoved)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.handler.OnFlowRemoved(r, msg)
	case openflow.OFPT_PACKET_IN:
		msg := new(openflow.PacketIn)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.handler.OnPacketIn(r, msg)
	default:
		// Unsupported message. Do nothing.
		return nil
	}
}

func (r *Transceiver) Close() error {
	return r.stream.Close()
}
