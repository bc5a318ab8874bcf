package serialbridge

import (
	"io"
	"time"
)

// writeLoop is the writer worker. It owns the write half and drains the
// outbound channel in order until the channel is closed or a write fails.
func (b *bridge) writeLoop() {
	reason, err := b.runWriter()
	b.writer.finish(reason, err)

	if reason == ReasonDeviceError {
		b.metrics.WriteErrors.Inc()
		b.log.Error().Err(err).Msg("writer stopped")
		b.deviceFailed("write", err)
		return
	}
	b.log.Debug().Stringer("reason", reason).Msg("writer stopped")
}

func (b *bridge) runWriter() (StopReason, error) {
	for c := range b.outbound {
		err := b.flush(c.data)
		c.release()
		if err != nil {
			if b.forced.Load() {
				// Close gave up waiting and closed the handle under us.
				return ReasonRequestedShutdown, nil
			}
			return ReasonDeviceError, &DeviceError{Op: "write", Err: err}
		}
	}
	return ReasonChannelClosed, nil
}

// flush writes the whole chunk, retrying short writes. A write that makes
// no progress without an error is treated as io.ErrShortWrite rather than
// retried forever.
func (b *bridge) flush(data []byte) error {
	start := time.Now()
	written := 0
	for written < len(data) {
		n, err := b.wr.Write(data[written:])
		b.metrics.WriteCalls.Inc()
		if n > 0 {
			written += n
		}
		if err != nil {
			return err
		}
		if written < len(data) {
			b.metrics.ShortWrites.Inc()
			if n <= 0 {
				return io.ErrShortWrite
			}
		}
	}
	b.metrics.recordFlush(len(data), time.Since(start))
	return nil
}
