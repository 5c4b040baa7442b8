// Package commands implements the quarry CLI commands.
package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/coregx/quarry/internal/bind"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	muted   = color.New(color.FgHiBlack)
)

func printSection(w io.Writer, title, body string) {
	heading.Fprintln(w, title)
	fmt.Fprintln(w, "  "+body)
}

func printBinds(w io.Writer, binds bind.Map) {
	if len(binds) == 0 {
		return
	}
	heading.Fprintln(w, "Binds")
	for _, name := range binds.Names() {
		e := binds[name]
		fmt.Fprintf(w, "  :%s = %s ", name, e.Literal())
		muted.Fprintf(w, "(%s)\n", e.Type)
	}
}
