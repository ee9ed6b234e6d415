package sshd

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"golang.org/x/crypto/ssh"
)

// forwardBufferSize is the pooled buffer size for channel copies.
const forwardBufferSize = 32 * 1024

var forwardBuffers = sync.Pool{
	New: func() any {
		buf := make([]byte, forwardBufferSize)
		return &buf
	},
}

// serveChannels accepts direct-tcpip channels and rejects everything else.
// It returns when the client stops opening channels.
func (s *Server) serveChannels(chans <-chan ssh.NewChannel) {
	for newChan := range chans {
		if newChan.ChannelType() != "direct-tcpip" {
			newChan.Reject(ssh.UnknownChannelType, "only port forwarding allowed")
			continue
		}

		addr, err := parseForwardTarget(newChan.ExtraData())
		if err != nil {
			s.logger.WithError(err).Warn("ssh: rejecting malformed forward request")
			newChan.Reject(ssh.Prohibited, err.Error())
			continue
		}

		ch, reqs, err := newChan.Accept()
		if err != nil {
			s.logger.WithError(err).Error("ssh: accepting channel failed")
			continue
		}
		go ssh.DiscardRequests(reqs)
		go s.forward(ch, addr)
	}
}

// parseForwardTarget reads the destination out of a direct-tcpip open
// request: uint32 host length, host, uint32 port. The originator fields
// behind them are not needed.
func parseForwardTarget(extra []byte) (string, error) {
	if len(extra) < 4 {
		return "", fmt.Errorf("direct-tcpip request too short for host length")
	}
	hostLen := binary.BigEndian.Uint32(extra)
	if uint64(len(extra)) < 4+uint64(hostLen)+4 {
		return "", fmt.Errorf("direct-tcpip request too short for host and port")
	}
	host := string(extra[4 : 4+hostLen])
	port := binary.BigEndian.Uint32(extra[4+hostLen:])
	return net.JoinHostPort(host, strconv.Itoa(int(port))), nil
}

// forward bridges one accepted channel to its TCP target. Half-closes
// propagate in both directions and the bridge ends only when both
// directions are drained, mirroring the relay's wait-for-both semantics.
func (s *Server) forward(ch ssh.Channel, addr string) {
	defer ch.Close()

	target, err := s.dial("tcp", addr)
	if err != nil {
		s.logger.WithError(err).WithField("target", addr).Error("ssh: forward dial failed")
		return
	}
	defer target.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := copyBuffered(target, ch); err != nil && err != io.EOF {
			s.logger.WithError(err).WithField("target", addr).Debug("ssh: channel to target copy ended")
		}
		closeWrite(target)
	}()
	go func() {
		defer wg.Done()
		if _, err := copyBuffered(ch, target); err != nil && err != io.EOF {
			s.logger.WithError(err).WithField("target", addr).Debug("ssh: target to channel copy ended")
		}
		ch.CloseWrite()
	}()
	wg.Wait()
}

// copyBuffered is io.CopyBuffer on a pooled buffer, cutting allocations
// across many forwarded connections.
func copyBuffered(dst io.Writer, src io.Reader) (int64, error) {
	buf := forwardBuffers.Get().(*[]byte)
	defer forwardBuffers.Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}

func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
}
