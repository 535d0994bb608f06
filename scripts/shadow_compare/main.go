// Command shadow_compare replays read-only requests against both the
// legacy Node scheduler backend and this API, then reports status and
// body differences. Used during the port cutover to prove endpoint
// parity before switching traffic.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type endpoint struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type plan struct {
	Endpoints []endpoint `json:"endpoints"`
}

// volatileKeys are generated server-side and never match across the
// two backends, so they are stripped before body comparison.
var volatileKeys = map[string]bool{
	"id":         true,
	"created_at": true,
	"request_id": true,
	"issued_at":  true,
	"meetLink":   true,
	"eventLink":  true,
}

type result struct {
	Endpoint       endpoint
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func main() {
	var (
		goBase     string
		legacyBase string
		planPath   string
		token      string
		timeout    time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000", "Legacy scheduler base URL")
	flag.StringVar(&planPath, "plan", filepath.Join("scripts", "shadow_compare", "endpoints.json"), "Path to JSON endpoint plan")
	flag.StringVar(&token, "token", "", "Bearer token sent to both backends")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	endpoints, err := loadPlan(planPath)
	if err != nil {
		log.Fatalf("failed to load endpoint plan: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results      []result
		breaking     int
		optionalDiff int
	)

	for _, ep := range endpoints {
		res := compareEndpoint(client, goBase, legacyBase, token, ep)
		if res.Error != nil {
			if ep.Critical {
				breaking++
			}
		} else if !res.StatusMatch || !res.BodyMatch {
			if ep.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadPlan(path string) ([]endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if len(p.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints defined in %s", path)
	}
	return p.Endpoints, nil
}

func compareEndpoint(client *http.Client, goBase, legacyBase, token string, ep endpoint) result {
	res := result{Endpoint: ep}
	goResp, goDur, goErr := performRequest(client, goBase, token, ep)
	legacyResp, legacyDur, legacyErr := performRequest(client, legacyBase, token, ep)
	res.DurationGo = goDur
	res.DurationLegacy = legacyDur

	if goErr != nil {
		res.Error = fmt.Errorf("go request failed: %w", goErr)
		return res
	}
	if legacyErr != nil {
		res.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return res
	}

	res.GoStatus = goResp.StatusCode
	res.LegacyStatus = legacyResp.StatusCode
	res.StatusMatch = res.GoStatus == res.LegacyStatus

	defer goResp.Body.Close()
	defer legacyResp.Body.Close()

	goBody, err := io.ReadAll(goResp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read go body: %w", err)
		return res
	}
	legacyBody, err := io.ReadAll(legacyResp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read legacy body: %w", err)
		return res
	}

	res.BodyMatch = bodiesEqual(goBody, legacyBody)

	return res
}

func performRequest(client *http.Client, base, token string, ep endpoint) (*http.Response, time.Duration, error) {
	method := strings.ToUpper(strings.TrimSpace(ep.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := ep.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
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
			if volatileKeys[k] {
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

func printReport(results []result) {
	fmt.Println("Shadow Compare Report")
	fmt.Println("======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Endpoint.Method, res.Endpoint.Path)
		fmt.Printf("  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Endpoint.Critical)
		}
	}
}
