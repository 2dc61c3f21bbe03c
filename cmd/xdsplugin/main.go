// Command xdsplugin is a thin driver over the plugin package, playing
// the role the real XDS plugin shim's four C ABI entry points play:
// open, get_header, get_data, close, all routed through a single
// process-wide handle. It is not a general-purpose CLI; running it
// exercises the same round trip the shim would, against a file named
// on the command line, and is meant for manual smoke-testing rather
// than everyday use.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/detectorio/h5xds/plugin"
)

const (
	vendorID     = 1
	versionMajor = 1
	versionMinor = 0
	versionPatch = 0
)

var handle plugin.Handle

// open fulfills the shim's plugin_open: it takes a filename and an
// info array the caller supplies, stamps identifying fields into it,
// and returns an integer status code.
func open(filename string, info []int) int {
	if len(info) < 1024 {
		slog.Error("info array too small", "len", len(info))
		return plugin.ErrUsage
	}
	if err := handle.Open(filename); err != nil {
		slog.Error("open failed", "file", filename, "error", err)
		return plugin.ErrParse
	}

	info[0] = vendorID
	info[1] = versionMajor
	info[2] = versionMinor
	info[3] = versionPatch
	info[4] = int(time.Now().Unix())

	return plugin.ErrNone
}

// getHeader fulfills the shim's plugin_get_header.
func getHeader() (nx, ny, nbytes int, qx, qy float32, numberOfFrames int, code int) {
	h, err := handle.GetHeader()
	if err != nil {
		slog.Error("get_header failed", "error", err)
		return 0, 0, 0, 0, 0, 0, plugin.ErrParse
	}
	return h.NX, h.NY, h.NBytes, h.QX, h.QY, h.NumberOfFrames, plugin.ErrNone
}

// getData fulfills the shim's plugin_get_data: frameNumber is
// 1-indexed, and data must already be sized nx*ny by the caller.
func getData(frameNumber int, data []int32) int {
	pixels, err := handle.GetData(frameNumber)
	if err != nil {
		slog.Error("get_data failed", "frame", frameNumber, "error", err)
		return plugin.ErrParse
	}
	if len(data) != len(pixels) {
		slog.Error("destination buffer size mismatch", "have", len(data), "want", len(pixels))
		return plugin.ErrUsage
	}
	copy(data, pixels)
	return plugin.ErrNone
}

// close fulfills the shim's plugin_close.
func close_() int {
	if err := handle.Close(); err != nil {
		slog.Error("close failed", "error", err)
		return plugin.ErrParse
	}
	return plugin.ErrNone
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: xdsplugin <master.h5>")
		os.Exit(plugin.ErrUsage)
	}
	filename := os.Args[1]

	info := make([]int, 1024)
	if code := open(filename, info); code != plugin.ErrNone {
		os.Exit(code)
	}
	defer close_()

	nx, ny, nbytes, qx, qy, numberOfFrames, code := getHeader()
	if code != plugin.ErrNone {
		os.Exit(code)
	}
	slog.Info("header", "nx", nx, "ny", ny, "nbytes", nbytes, "qx", qx, "qy", qy, "frames", numberOfFrames)

	data := make([]int32, nx*ny)
	for frame := 1; frame <= numberOfFrames; frame++ {
		if code := getData(frame, data); code != plugin.ErrNone {
			os.Exit(code)
		}
	}
	slog.Info("read all frames", "count", numberOfFrames)
}
