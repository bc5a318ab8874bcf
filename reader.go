package serialbridge

// readLoop is the reader worker. It owns the read half for its whole life
// and is the only sender on, and the closer of, the inbound channel.
func (b *bridge) readLoop() {
	reason, err := b.runReader()

	// Publish the status before closing inbound: a consumer that sees the
	// channel closed must also see why.
	b.reader.finish(reason, err)
	close(b.inbound)

	if reason == ReasonDeviceError {
		b.metrics.ReadErrors.Inc()
		b.log.Error().Err(err).Msg("reader stopped")
		b.deviceFailed("read", err)
		return
	}
	b.log.Debug().Stringer("reason", reason).Msg("reader stopped")
}

func (b *bridge) runReader() (StopReason, error) {
	for {
		if b.quitting() {
			return b.cause, nil
		}

		buf, release := b.pools.GetPooledBuffer(b.opts.ReadBufferSize)
		n, err := b.rd.Read(buf)
		var chunk []byte
		if n > 0 {
			chunk = make([]byte, n)
			copy(chunk, buf[:n])
		}
		release()

		if n > 0 || err == nil {
			b.metrics.recordRead(n)
		}
		// Bytes that arrive after shutdown are dropped; consumers may
		// already have been told the port is closed. This also covers a Read
		// failing because we closed the handle underneath it.
		if b.quitting() {
			return b.cause, nil
		}
		// Data returned alongside an error is still delivered, ahead of the
		// error.
		if n > 0 && !b.deliver(chunk) {
			return b.cause, nil
		}
		if err != nil {
			return ReasonDeviceError, &DeviceError{Op: "read", Err: err}
		}
	}
}

// deliver enqueues chunk, blocking while the inbound channel is full. It
// reports false if the bridge is stopping instead.
func (b *bridge) deliver(chunk []byte) bool {
	select {
	case b.inbound <- chunk:
		return true
	default:
	}

	b.metrics.InboundStalls.Inc()
	select {
	case b.inbound <- chunk:
		return true
	case <-b.quit:
		return false
	}
}

func (b *bridge) quitting() bool {
	select {
	case <-b.quit:
		return true
	default:
		return false
	}
}
