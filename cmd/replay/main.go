// Command replay verifies a recorded mission log: it reads the compressed
// JSONL samples of a run, checks tick and path-index monotonicity, and
// prints a summary of goals, replans, and arrivals.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"dunenet.ai/internal/sim/world"
)

func main() {
	var (
		runDir   = flag.String("run", "", "run directory containing mission/ and events/")
		fromTick = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	samples, err := verifySamples(filepath.Join(*runDir, "mission"), "mission-", *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mission log:", err)
		os.Exit(1)
	}

	events, err := summarizeEvents(filepath.Join(*runDir, "events"), "events-")
	if err != nil {
		fmt.Fprintln(os.Stderr, "event log:", err)
		os.Exit(1)
	}

	fmt.Printf("replay ok: samples=%d\n", samples)
	types := make([]string, 0, len(events))
	for t := range events {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %s: %d\n", t, events[t])
	}
}

func verifySamples(dir, prefix string, fromTick, toTick uint64) (uint64, error) {
	files, err := listLogFiles(dir, prefix)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no %s*.jsonl.zst files in %s", prefix, dir)
	}

	var (
		checked   uint64
		lastTick  uint64
		haveFirst bool
	)
	for _, path := range files {
		err := scanLog(path, func(line []byte) error {
			var s world.MissionSample
			if err := json.Unmarshal(line, &s); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			if s.Tick < fromTick {
				return nil
			}
			if toTick != 0 && s.Tick > toTick {
				return nil
			}
			if haveFirst && s.Tick <= lastTick {
				return fmt.Errorf("tick not increasing: %d after %d", s.Tick, lastTick)
			}
			lastTick = s.Tick
			haveFirst = true

			if s.Rover.PathIndex < 0 || s.Rover.PathIndex > s.Rover.PathLength {
				return fmt.Errorf("tick %d: path_index %d outside path of length %d",
					s.Tick, s.Rover.PathIndex, s.Rover.PathLength)
			}
			checked++
			return nil
		})
		if err != nil {
			return checked, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return checked, nil
}

func summarizeEvents(dir, prefix string) (map[string]uint64, error) {
	counts := map[string]uint64{}
	files, err := listLogFiles(dir, prefix)
	if err != nil {
		if os.IsNotExist(err) {
			return counts, nil
		}
		return nil, err
	}
	for _, path := range files {
		err := scanLog(path, func(line []byte) error {
			var ev world.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			counts[ev.Type]++
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return counts, nil
}

func listLogFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func scanLog(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}
