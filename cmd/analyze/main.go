// Command analyze prints quick, human-readable heuristics about simulation
// config files. For each config it builds the road network (generating the
// layout when the config has none) and reports cell counts, spawn capacity
// and junctions that have no exit direction.
//
// Usage:
//
//	analyze [dir-or-file ...]
//
// With no arguments the configs directory is analyzed. The exit status is 1
// when any config fails to load or shows generation defects.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/gridtraffic/game/citygen"
	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
)

// Report summarizes one config
type Report struct {
	File          string
	Name          string
	Cols          int
	Rows          int
	Generated     bool
	Agents        int
	Roads         int
	Junctions     int
	Buildings     int
	SpawnPoints   int
	EmptyExits    []engine.Coord
	SingleExits   []engine.Coord
	RoadShare     float64
	Crowded       bool
	HasDefects    bool
	ValidationErr error
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"configs"}
	}

	files, err := collectFiles(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("No config files found")
		return
	}

	failed := false
	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", file)
		report := analyzeConfig(file)
		printReport(os.Stdout, report)
		if report.ValidationErr != nil || report.HasDefects {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// collectFiles expands directories into their config files
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && engine.IsConfigFile(entry.Name()) {
				files = append(files, filepath.Join(arg, entry.Name()))
			}
		}
	}
	sort.Strings(files)
	return lo.Uniq(files), nil
}

func analyzeConfig(path string) *Report {
	report := &Report{File: path}

	config, err := engine.LoadSimConfig(path)
	if err != nil {
		report.ValidationErr = err
		return report
	}
	report.Name = config.Name
	report.Cols, report.Rows = config.Cols, config.Rows
	report.Agents = config.AgentCount
	report.Generated = len(config.Layout) == 0

	prepared := citygen.Prepare(config)
	quiet := log.New()
	quiet.SetOutput(io.Discard)
	net, err := engine.NewNetwork(prepared.Layout, prepared.Params(), engine.WithLogger(quiet))
	if err != nil {
		report.ValidationErr = err
		return report
	}

	report.Roads = net.CountKind(engine.RoadHorizontal) + net.CountKind(engine.RoadVertical)
	report.Junctions = net.CountKind(engine.Junction)
	report.Buildings = net.CountKind(engine.Building)
	report.SpawnPoints = len(net.SpawnPoints())
	report.RoadShare = float64(report.Roads+report.Junctions) / float64(net.Cols()*net.Rows())
	// Safe spawning needs a free cell ahead of and behind each car
	report.Crowded = report.Agents > report.Roads/2

	views := net.JunctionViews()
	report.EmptyExits = lo.FilterMap(views, func(v engine.JunctionView, _ int) (engine.Coord, bool) {
		return v.Coord, len(v.AllowedExits) == 0
	})
	report.SingleExits = lo.FilterMap(views, func(v engine.JunctionView, _ int) (engine.Coord, bool) {
		return v.Coord, len(v.AllowedExits) == 1
	})
	report.HasDefects = len(report.EmptyExits) > 0
	return report
}

func printReport(w io.Writer, r *Report) {
	if r.ValidationErr != nil {
		fmt.Fprintf(w, "❌ Error loading config: %v\n", r.ValidationErr)
		return
	}

	source := "fixed layout"
	if r.Generated {
		source = "generated layout"
	}
	fmt.Fprintf(w, "Name: %s\n", r.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d (%s)\n", r.Cols, r.Rows, source)
	fmt.Fprintf(w, "Cars: %d\n", r.Agents)
	fmt.Fprintf(w, "Road cells: %d, junctions: %d, buildings: %d\n", r.Roads, r.Junctions, r.Buildings)
	fmt.Fprintf(w, "Road share: %.0f%%\n", r.RoadShare*100)
	fmt.Fprintf(w, "Spawn points: %d\n", r.SpawnPoints)

	if r.Crowded {
		fmt.Fprintf(w, "⚠️  WARNING: %d cars for %d road cells, some cars may not be placed\n", r.Agents, r.Roads)
	}

	if len(r.EmptyExits) > 0 {
		fmt.Fprintf(w, "⚠️  CRITICAL: %d junctions have no exit direction!\n", len(r.EmptyExits))
		for i, c := range r.EmptyExits {
			if i < 5 {
				fmt.Fprintf(w, "   No exit: (%d, %d)\n", c.Col, c.Row)
			}
		}
		if len(r.EmptyExits) > 5 {
			fmt.Fprintf(w, "   ... and %d more\n", len(r.EmptyExits)-5)
		}
	} else {
		fmt.Fprintf(w, "✅ Every junction has at least one exit\n")
	}

	if len(r.SingleExits) > 0 {
		fmt.Fprintf(w, "Single-exit junctions: %d\n", len(r.SingleExits))
	}
}
