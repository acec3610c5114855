// Command cbc-diag queries the AIOC for its bootloader/firmware versions
// and boot-timestamp telemetry, the standalone diagnostic counterpart to
// the vlc daemon.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/open-vlc/vlc/diag"
)

func main() {
	var (
		bootloader = flag.Bool("bootloader", false, "print bootloader version")
		firmware   = flag.Bool("firmware", false, "print firmware version")
		mainboard  = flag.Bool("mainboard", false, "print mainboard version")
		all        = flag.Bool("all", false, "print all version fields")
		timestamps = flag.Int("timestamps", 0, "boot timestamp mode: 0=none, 1=stdout, 2=file")
		logFile    = flag.String("log-file", "", "file to additionally write timestamps to, required for -timestamps=2")
		verbose    = flag.Bool("v", false, "verbose protocol tracing")
	)
	flag.Parse()

	flags := diag.FlagNone
	if *all {
		flags = diag.FlagAll
	} else {
		if *bootloader {
			flags |= diag.FlagBootloaderVersion
		}
		if *firmware {
			flags |= diag.FlagFirmwareVersion
		}
		if *mainboard {
			flags |= diag.FlagMainboardVersion
		}
	}

	mode := diag.TimestampMode(*timestamps)
	if mode == diag.TimestampsFile && *logFile == "" {
		fmt.Fprintln(os.Stderr, "cbc-diag: -timestamps=2 requires -log-file")
		os.Exit(2)
	}

	tool, err := diag.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cbc-diag: %v\n", err)
		os.Exit(1)
	}
	defer tool.Close()
	tool.Verbose = *verbose

	var logWriter *os.File
	if mode == diag.TimestampsFile {
		logWriter, err = os.Create(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cbc-diag: %v\n", err)
			os.Exit(1)
		}
		defer logWriter.Close()
	}

	var w io.Writer
	if logWriter != nil {
		w = logWriter
	}

	if err := tool.Request(flags, mode); err != nil {
		fmt.Fprintf(os.Stderr, "cbc-diag: %v\n", err)
		os.Exit(1)
	}
	if err := tool.Receive(flags, mode, w); err != nil {
		fmt.Fprintf(os.Stderr, "cbc-diag: %v\n", err)
		os.Exit(1)
	}
}
