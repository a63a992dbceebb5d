package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// ConsoleWriter turns zerolog's JSON events into coloured, human readable lines
type ConsoleWriter struct {
	Out io.Writer
	// Verbose appends every event field to the message
	Verbose bool

	buffer strings.Builder
	lock   sync.Mutex
}

func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{Out: out}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	switch evt["level"] {
	case "fatal":
		fallthrough
	case "error":
		w.buffer.WriteString(colorstring.Color("[red]"))
	case "warn":
		w.buffer.WriteString(colorstring.Color("[yellow]"))
	case "debug":
		fallthrough
	case "trace":
		w.buffer.WriteString(colorstring.Color("[blue]"))
	default:
		w.buffer.WriteString(colorstring.Color("[green]"))
	}

	if _, ok := evt["cmd"]; ok {
		w.buffer.WriteString("$ ")
	}

	if dry, ok := evt["dry"].(bool); ok && dry {
		w.buffer.WriteString("(dry run) ")
	}

	if evt["level"] == "error" {
		w.buffer.WriteString("Error: ")
	}

	msg, _ := evt["message"].(string)

	path, ok := evt["path"].(string)
	if ok {
		// simplify the path
		relPath, err := filepath.Rel(".", path)
		if err == nil {
			msg = strings.ReplaceAll(msg, path, relPath)
		}
	}

	// message and fields are written verbatim; only the level markers above
	// go through colorstring
	w.buffer.WriteString(msg)

	errorDetails, ok := evt["error"].(string)
	if ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(errorDetails)
	}

	if w.Verbose {
		names := make([]string, 0, len(evt))
		for name := range evt {
			names = append(names, name)
		}
		sort.Strings(names)

		w.buffer.WriteString("\n")
		for _, name := range names {
			w.buffer.WriteString(fmt.Sprintf("  %s: %+v\n", name, evt[name]))
		}
	}

	w.buffer.WriteString(colorstring.Color("[reset]"))
	w.buffer.WriteString("\n")
	_, err = io.WriteString(w.Out, w.buffer.String())
	if err != nil {
		return 0, err
	}
	return len(p), nil
}
