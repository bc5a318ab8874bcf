package serialbridge

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultReadBufferSize is the largest chunk a single device read produces.
	DefaultReadBufferSize = 1024
	DefaultInboundDepth   = 16
	DefaultOutboundDepth  = 16
	DefaultCloseTimeout   = 2 * time.Second

	// MaxBufferSize caps ReadBufferSize. 64KB covers any serial protocol and
	// matches typical OS serial buffer sizes.
	MaxBufferSize = 64 * 1024
)

// Options tunes the bridge between a Handle and its Port.
type Options struct {
	// Name identifies the port in logs. Open fills it from Config.PortName.
	Name string

	// ReadBufferSize bounds each chunk produced by one device read.
	ReadBufferSize int `validate:"gte=0,lte=65536"`

	// InboundDepth and OutboundDepth are the channel capacities in chunks.
	InboundDepth  int `validate:"gte=0,lte=4096"`
	OutboundDepth int `validate:"gte=0,lte=4096"`

	// CloseTimeout bounds how long Close lets the writer flush queued chunks
	// before the write half is closed underneath it.
	CloseTimeout time.Duration `validate:"gte=0"`

	// IndependentDirections keeps the healthy direction running when the
	// other one hits a device error. By default the failure cascades and the
	// whole port shuts down.
	IndependentDirections bool

	Logger *zerolog.Logger `validate:"-"`
}

// Config describes a device to open with Open.
type Config struct {
	PortName string   `validate:"required"`
	BaudRate BaudRate `validate:"oneof=1200 2400 4800 9600 19200 38400 57600 115200 230400 460800 921600"`
	DataBits DataBits `validate:"oneof=5 6 7 8"`
	Parity   Parity   `validate:"oneof=0 1 2 3 4"`
	StopBits StopBits `validate:"oneof=0 1 2"`

	// ReadTimeout, when positive, makes device reads return periodically
	// with no data. Zero keeps reads fully blocking.
	ReadTimeout time.Duration `validate:"gte=0"`

	DTR bool
	RTS bool

	Options
}

func (o Options) withDefaults() Options {
	if o.ReadBufferSize == 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	if o.InboundDepth == 0 {
		o.InboundDepth = DefaultInboundDepth
	}
	if o.OutboundDepth == 0 {
		o.OutboundDepth = DefaultOutboundDepth
	}
	if o.CloseTimeout == 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

func (c Config) withDefaults() Config {
	if c.DataBits == 0 {
		c.DataBits = DataBits8
	}
	if c.Name == "" {
		c.Name = c.PortName
	}
	c.Options = c.Options.withDefaults()
	return c
}
