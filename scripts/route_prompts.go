// route_prompts.go posts a file of prompts, one per line, to the llmroute
// batch endpoint in chunks and prints where each prompt was routed.
//
// Usage:
//
//	go run scripts/route_prompts.go -prompts prompts.txt -api http://localhost:8700 -router sw_ranking
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type batchRequest struct {
	Prompts   []string `json:"prompts"`
	Router    string   `json:"router,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type batchResponse struct {
	Router  string `json:"router"`
	Results []struct {
		Index    int     `json:"index"`
		RoutedTo string  `json:"routed_to"`
		Model    string  `json:"model"`
		WinRate  float64 `json:"win_rate"`
		Error    string  `json:"error"`
	} `json:"results"`
}

func main() {
	promptsPath := flag.String("prompts", "prompts.txt", "file with one prompt per line")
	apiURL := flag.String("api", "http://localhost:8700", "llmroute API base URL")
	routerName := flag.String("router", "", "router name (server default when empty)")
	threshold := flag.Float64("threshold", -1, "threshold override; negative uses the router's")
	chunk := flag.Int("chunk", 100, "prompts per request")
	flag.Parse()

	f, err := os.Open(*promptsPath)
	if err != nil {
		log.Fatalf("open prompts: %v", err)
	}
	defer f.Close()

	var prompts []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := sc.Err(); err != nil {
		log.Fatalf("read prompts: %v", err)
	}
	if *chunk <= 0 {
		*chunk = 100
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	strong, weak, failed := 0, 0, 0
	for start := 0; start < len(prompts); start += *chunk {
		end := min(start+*chunk, len(prompts))
		req := batchRequest{Prompts: prompts[start:end], Router: *routerName}
		if *threshold >= 0 {
			req.Threshold = threshold
		}
		body, _ := json.Marshal(req)

		resp, err := client.Post(*apiURL+"/api/v1/route/batch", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("post batch %d-%d: %v", start, end, err)
		}
		var out batchResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			log.Fatalf("batch %d-%d: status %d", start, end, resp.StatusCode)
		}
		if err != nil {
			log.Fatalf("decode batch %d-%d: %v", start, end, err)
		}

		for _, r := range out.Results {
			p := prompts[start+r.Index]
			if len(p) > 60 {
				p = p[:57] + "..."
			}
			if r.Error != "" {
				failed++
				fmt.Printf("[%d] error: %s  %q\n", start+r.Index+1, r.Error, p)
				continue
			}
			if r.RoutedTo == "strong" {
				strong++
			} else {
				weak++
			}
			fmt.Printf("[%d] %-6s %.3f %s  %q\n", start+r.Index+1, r.RoutedTo, r.WinRate, r.Model, p)
		}
	}

	log.Printf("done: %d strong, %d weak, %d failed", strong, weak, failed)
}
