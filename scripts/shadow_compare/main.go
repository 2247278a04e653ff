// Command shadow_compare replays read-only requests against a baseline and a
// candidate deployment of the behavior tracker API and reports divergence.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target            target
	BaselineStatus    int
	CandidateStatus   int
	StatusMatch       bool
	BodyMatch         bool
	Error             error
	DurationCandidate time.Duration
	DurationBaseline  time.Duration
}

// volatileKeys differ between any two calls and are dropped before JSON bodies are compared.
var volatileKeys = map[string]struct{}{
	"processing_time_ms": {},
	"cache_hit":          {},
	"from":               {},
	"expires_at":         {},
	"url":                {},
}

func main() {
	var (
		candidateBase string
		baselineBase  string
		targetsPath   string
		token         string
		timeout       time.Duration
	)

	flag.StringVar(&candidateBase, "candidate-base", "http://localhost:8080", "Candidate deployment base URL")
	flag.StringVar(&baselineBase, "baseline-base", "http://localhost:8081", "Baseline deployment base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.StringVar(&token, "token", os.Getenv("SHADOW_BEARER_TOKEN"), "Bearer token sent to both deployments")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync() //nolint:errcheck

	targets, err := loadTargets(targetsPath)
	if err != nil {
		logger.Fatal("failed to load targets", zap.String("path", targetsPath), zap.Error(err))
	}

	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	for _, t := range targets {
		comp := compareTarget(client, candidateBase, baselineBase, token, t)
		switch {
		case comp.Error != nil:
			logger.Warn("comparison failed", zap.String("path", t.Path), zap.Error(comp.Error))
			if t.Critical {
				breaking++
			}
		case !comp.StatusMatch || !comp.BodyMatch:
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(os.Stdout, comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, candidateBase, baselineBase, token string, tgt target) comparison {
	comp := comparison{Target: tgt}
	candidateStatus, candidateType, candidateBody, candidateDur, err := fetch(client, candidateBase, token, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("candidate request failed: %w", err)
		return comp
	}
	baselineStatus, baselineType, baselineBody, baselineDur, err := fetch(client, baselineBase, token, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("baseline request failed: %w", err)
		return comp
	}

	comp.DurationCandidate = candidateDur
	comp.DurationBaseline = baselineDur
	comp.CandidateStatus = candidateStatus
	comp.BaselineStatus = baselineStatus
	comp.StatusMatch = candidateStatus == baselineStatus
	if isCSV(candidateType) && isCSV(baselineType) {
		comp.BodyMatch = csvEqual(candidateBody, baselineBody)
	} else {
		comp.BodyMatch = bodiesEqual(candidateBody, baselineBody)
	}
	return comp
}

func fetch(client *http.Client, base, token string, tgt target) (int, string, []byte, time.Duration, error) {
	if client == nil {
		return 0, "", nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, "", nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body, time.Since(start), nil
}

func isCSV(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "text/csv")
}

// csvEqual compares parsed records so quoting differences do not count as drift.
func csvEqual(a, b []byte) bool {
	ar, err := csv.NewReader(bytes.NewReader(a)).ReadAll()
	if err != nil {
		return false
	}
	br, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		return false
	}
	return reflect.DeepEqual(ar, br)
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			if _, volatile := volatileKeys[k]; volatile {
				delete(val, k)
				continue
			}
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(w io.Writer, results []comparison) {
	fmt.Fprintln(w, "Shadow Compare Report")
	fmt.Fprintln(w, "======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Fprintf(w, "  Candidate: %d (%s)\n", res.CandidateStatus, res.DurationCandidate)
		fmt.Fprintf(w, "  Baseline:  %d (%s)\n", res.BaselineStatus, res.DurationBaseline)
		if res.Error != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Error)
		} else {
			fmt.Fprintf(w, "  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
