package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tliron/commonlog"

	"github.com/quackduck/kbye/internal/config"
	"github.com/quackduck/kbye/internal/server"

	_ "github.com/tliron/commonlog/simple"
)

var (
	helpMsg = `Kbye - Hide secret messages in boring replies

Usage:
   kbye               - encode data from STDIN into filler words
   kbye -d/--decode   - decode filler words from STDIN
   kbye serve         - serve the encoder over HTTP
   kbye -h/--help     - print this help message

Kbye reads from STDIN for your data and outputs the result to STDOUT. Every 3 bits become one of
ok, k, bye, lol, cool, nice, sure or yeah (or a synonym). While decoding, case and whitespace are
ignored, and any other word is an error.

Examples:
   echo hello world | kbye | kbye --decode     # basic usage
   echo -n hi | kbye                           # lol bye ok sure cool cool (or similar)
   echo "LOL cya OKAY yep kool COOL" | kbye -d # hi

Kbye reads kbye.toml from the current directory if it exists. Set $KBYE_CONFIG to use another file
and $KBYE_BUFSIZE to change the buffer size. The default is ` + strconv.Itoa(config.Default().Codec.BufferSize) + ` bytes.

File issues, contribute or star at github.com/quackduck/kbye`
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "-h", "--help":
		fmt.Fprintln(stdout, helpMsg)
		return 0
	case "", "-d", "--decode", "serve":
	default:
		fmt.Fprintln(stderr, "error: unknown argument "+strconv.Quote(mode)+"\n"+helpMsg)
		return 1
	}
	if len(args) > 1 {
		fmt.Fprintln(stderr, "error: too many arguments\n"+helpMsg)
		return 1
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	var logFile *string
	if cfg.Log.File != "" {
		logFile = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, logFile)
	log := commonlog.GetLogger("kbye.cli")

	c, err := cfg.Coding()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	log.Debugf("buffer size %d", cfg.Codec.BufferSize)

	switch mode {
	case "serve":
		s, err := server.New(c, cfg.Server)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err = s.Run(ctx, cfg.Server.Listen); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	case "-d", "--decode":
		if err = c.Decode(stdout, stdin); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	default:
		if err = c.Encode(stdout, stdin); err == nil {
			_, err = io.WriteString(stdout, "\n")
		}
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}
	return 0
}
