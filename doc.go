// Package serialbridge exposes a blocking serial device as a
// goroutine-friendly read/write endpoint.
//
// Device I/O happens on two dedicated goroutines, one blocked in Read and
// one blocked in Write, connected to the caller through bounded channels.
// Callers wait only on channel operations and their context, so a slow or
// stuck device never stalls unrelated work in the caller.
//
// Features:
//   - Bounded inbound and outbound queues; a full queue suspends the
//     producer, data is never dropped
//   - Read order and write order are preserved exactly
//   - Device failures are terminal per direction and surface as *DeviceError
//   - Close is idempotent and returns only after both workers have exited
//   - Port implements io.ReadWriteCloser for existing stream code
//
// Example usage:
//
//	port, err := serialbridge.Open(serialbridge.Config{
//	    PortName: "/dev/ttyUSB0",
//	    BaudRate: serialbridge.Baud115200,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	if err := port.WriteChunk(ctx, []byte("AT\r\n")); err != nil {
//	    log.Fatal(err)
//	}
//	reply, err := port.ReadChunk(ctx)
//
// Any opened blocking stream can be bridged with NewPort; on unix a tty or
// pty *os.File is wrapped with NewFileHandle so reads and writes use
// separate descriptors.
package serialbridge
