// Package version carries build metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/fusionn-seer/internal/version.Version=v1.2.3 \
//	  -X github.com/fusionn-seer/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

const name = "fusionn-seer"

var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

const art = `
   __           _
  / _|_   _ ___(_) ___  _ __  _ __        ___  ___  ___ _ __
 | |_| | | / __| |/ _ \| '_ \| '_ \ _____/ __|/ _ \/ _ \ '__|
 |  _| |_| \__ \ | (_) | | | | | | |_____\__ \  __/  __/ |
 |_|  \__,_|___/_|\___/|_| |_|_| |_|     |___/\___|\___|_|
`

// Info is the build metadata reported by the health endpoint.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Name:      name,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String renders "fusionn-seer v1.2.3 (abc123, 2026-01-02)".
func (i Info) String() string {
	s := i.Name + " " + i.Version
	var extra []string
	if i.Commit != "" {
		extra = append(extra, i.Commit)
	}
	if i.BuildDate != "" {
		extra = append(extra, i.BuildDate)
	}
	if len(extra) > 0 {
		s += " (" + strings.Join(extra, ", ") + ")"
	}
	return s
}

func Banner() string {
	return strings.Trim(art, "\n")
}

// PrintBanner writes the startup banner to w, or stdout when w is nil.
func PrintBanner(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	rule := strings.Repeat("─", 60)
	fmt.Fprintf(w, "\n%s\n%s\n\n  %s\n  Season-aware request status for Overseerr\n%s\n\n", rule, Banner(), Get(), rule)
}
