package wire

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/viroprof/vprof/internal/stats"
)

// pstatFunctionKey mirrors the "(module, lineno, name)" tuple Python's
// cProfile/pstats module uses to key a function, so existing pstat-reader
// tooling can load a vprof-produced report without modification.
type pstatFunctionKey struct {
	Module string `json:"module"`
	Line   int    `json:"lineno"`
	Name   string `json:"name"`
}

type pstatCaller struct {
	Key         pstatFunctionKey `json:"key"`
	NCall       int64            `json:"ncalls"`
	CumulativeTime int64         `json:"cumulative_time"`
	TotalTime   int64            `json:"total_time"`
}

type pstatFunction struct {
	Key            pstatFunctionKey `json:"key"`
	NCall          int64            `json:"ncalls"`
	NActualCall    int64            `json:"primitive_calls"`
	TotalTime      int64            `json:"total_time"`
	CumulativeTime int64            `json:"cumulative_time"`
	Callers        []pstatCaller    `json:"callers"`
}

type pstatReport struct {
	ClockMode string          `json:"clock_mode"`
	Functions []pstatFunction `json:"functions"`
}

// WritePstat renders store as JSON shaped like Python's pstats.Stats
// dump: cumulative_time is ttot, total_time is tsub, and each function's
// callers list is synthesized from the reverse of every ChildEdge
// pointing at it (pstat natively tracks callers, vprof natively tracks
// callees, so this is a one-time inversion at serialization time).
func WritePstat(w io.Writer, store *stats.Store) error {
	mode, _ := store.ClockMode()
	entries, err := store.Iterate(stats.Filter{}, "name", false)
	if err != nil {
		return err
	}

	byIndex := make(map[int]*stats.Entry, len(entries))
	for _, e := range entries {
		byIndex[e.Index] = e
	}

	callers := make(map[int][]pstatCaller, len(entries))
	for _, e := range entries {
		for _, edge := range e.Children() {
			callers[edge.CalleeIndex] = append(callers[edge.CalleeIndex], pstatCaller{
				Key:            pstatFunctionKey{Module: e.Module, Line: e.Line, Name: e.Name},
				NCall:          edge.NCall,
				CumulativeTime: edge.TTot,
				TotalTime:      edge.TSub,
			})
		}
	}

	report := pstatReport{ClockMode: mode.String()}
	for _, e := range entries {
		report.Functions = append(report.Functions, pstatFunction{
			Key:            pstatFunctionKey{Module: e.Module, Line: e.Line, Name: e.Name},
			NCall:          e.NCall,
			NActualCall:    e.NActualCall,
			TotalTime:      e.TSub,
			CumulativeTime: e.TTot,
			Callers:        callers[e.Index],
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode pstat report: %w", err)
	}
	return nil
}
