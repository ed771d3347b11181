// compile-funnel prints the BigQuery SQL for a funnel defined in YAML.
//
// Usage: go run ./scripts/compile-funnel [flags] <funnel.yaml>
//
// Example funnel file:
//
//	only_direct_entry: false
//	steps:
//	  - kind: path
//	    value: /
//	  - kind: event
//	    value: signup_click
//	    event_scope: current-path
//	  - kind: path
//	    value: /welcome
//
// Flags:
//
//	-mode      count or timing (default: count)
//	-website   website UUID; required with -portable
//	-portable  inline the website and emit [[AND {{created_at}}]] for BI tools
//	-share     print the share query string instead of SQL
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sitelens/sitelens-engine/pkg/funnel"
	"github.com/sitelens/sitelens-engine/pkg/models"
)

func main() {
	mode := flag.String("mode", string(models.FunnelModeCount), "Query to compile: count or timing")
	website := flag.String("website", "", "Website UUID to inline (portable only)")
	portable := flag.Bool("portable", false, "Emit a portable query with the website inlined")
	share := flag.Bool("share", false, "Print the share query string instead of SQL")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-mode=count|timing] [-portable -website=<uuid>] [-share] <funnel.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	f, err := readFunnel(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read funnel: %v\n", err)
		os.Exit(1)
	}

	if *share {
		fmt.Println(funnel.EncodeShareState(f))
		return
	}

	m := models.FunnelMode(*mode)
	if !m.IsValid() {
		fmt.Fprintf(os.Stderr, "Unknown mode %q\n", *mode)
		os.Exit(1)
	}

	query, err := compile(f, m, *portable, *website)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compile funnel: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(query)
}

func readFunnel(path string) (models.Funnel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Funnel{}, err
	}
	var f models.Funnel
	if err := yaml.Unmarshal(data, &f); err != nil {
		return models.Funnel{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

func compile(f models.Funnel, mode models.FunnelMode, portable bool, website string) (string, error) {
	steps := funnel.Normalize(f.Steps)

	if !portable {
		if mode == models.FunnelModeTiming {
			return funnel.CompileFunnelTiming(steps, f.DirectEntryOnly)
		}
		return funnel.CompileFunnelCount(steps, f.DirectEntryOnly)
	}

	wid, err := uuid.Parse(website)
	if err != nil {
		return "", fmt.Errorf("invalid website id: %w", err)
	}
	c := funnel.NewCompiler(funnel.Options{})
	if mode == models.FunnelModeTiming {
		return c.PortableTimingQuery(steps, f.DirectEntryOnly, wid.String())
	}
	return c.PortableCountQuery(steps, f.DirectEntryOnly, wid.String())
}
