package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Station-Manager/serialbridge"
)

func main() {
	device := flag.String("device", "/dev/ttyUSB0", "serial device path")
	baud := flag.Int("baud", 9600, "baud rate")
	dataBits := flag.Int("databits", 8, "data bits")
	parity := flag.String("parity", "N", "parity (N,O,E,M,S)")
	stopBits := flag.String("stopbits", "1", "stop bits (1, 1.5 or 2)")
	eol := flag.String("eol", "crlf", "line ending appended to each stdin line (cr, lf, crlf, none)")
	readBuf := flag.Int("read-buf", serialbridge.DefaultReadBufferSize, "largest chunk produced by one device read")
	list := flag.Bool("list", false, "list available serial ports and exit")
	stats := flag.Bool("stats", false, "print port metrics as JSON on exit")
	statsEvery := flag.Duration("stats-interval", 0, "also print metrics periodically (0 disables)")
	logFile := flag.String("log-file", "", "write logs to this file (rotated) instead of stderr")
	verbose := flag.Bool("v", false, "debug logging")

	flag.Parse()

	logger := newLogger(*logFile, *verbose)

	if *list {
		ports, err := serialbridge.AvailablePorts()
		if err != nil {
			logger.Fatal().Err(err).Msg("listing ports")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	lineEnd, err := lineEnding(*eol)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad -eol")
	}
	par, err := serialbridge.ParseParity(*parity)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad -parity")
	}
	sb, err := serialbridge.ParseStopBits(*stopBits)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad -stopbits")
	}

	cfg := serialbridge.Config{
		PortName: *device,
		BaudRate: serialbridge.BaudRate(*baud),
		DataBits: serialbridge.DataBits(*dataBits),
		Parity:   par,
		StopBits: sb,
		Options: serialbridge.Options{
			ReadBufferSize: *readBuf,
			Logger:         &logger,
		},
	}

	port, err := serialbridge.Open(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *statsEvery > 0 {
		go func() {
			for snap := range port.WatchMetrics(ctx, *statsEvery) {
				printJSON(os.Stderr, snap)
			}
		}()
	}

	readDone := make(chan error, 1)
	go func() { readDone <- pump(ctx, port, os.Stdout) }()
	go feed(ctx, port, os.Stdin, lineEnd, logger)

	select {
	case <-ctx.Done():
	case err := <-readDone:
		if err != nil && !errors.Is(err, serialbridge.ErrPortClosed) {
			logger.Error().Err(err).Msg("read")
		}
	}

	_ = port.Close()
	if *stats {
		printJSON(os.Stdout, port.Metrics())
	}
}

// pump copies chunks from the port to w until the port stops.
func pump(ctx context.Context, port *serialbridge.Port, w io.Writer) error {
	for {
		chunk, err := port.ReadChunk(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
}

// feed sends each stdin line, with the configured line ending, to the port.
func feed(ctx context.Context, port *serialbridge.Port, r io.Reader, lineEnd string, logger zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if err := port.WriteChunk(ctx, []byte(line+lineEnd)); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("write")
			}
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error().Err(err).Msg("stdin")
	}
}

func lineEnding(name string) (string, error) {
	switch strings.ToLower(name) {
	case "cr":
		return "\r", nil
	case "lf":
		return "\n", nil
	case "crlf":
		return "\r\n", nil
	case "none", "":
		return "", nil
	}
	return "", fmt.Errorf("unsupported line ending %q (use cr, lf, crlf, none)", name)
}

func newLogger(path string, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var w io.Writer
	switch {
	case path != "":
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	case isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()):
		w = zerolog.ConsoleWriter{Out: colorable.NewColorableStderr(), TimeFormat: time.Kitchen}
	default:
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding metrics: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}
