package hermes

import "time"

// RouteRequestEvent asks for a routing decision over request-reply.
// Model may carry a "router-<name>-<threshold>" name instead of Router and
// Threshold.
type RouteRequestEvent struct {
	Prompt    string   `json:"prompt"`
	Router    string   `json:"router,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Model     string   `json:"model,omitempty"`
}

type DecisionEvent struct {
	DecisionID string    `json:"decision_id,omitempty"`
	Router     string    `json:"router"`
	RoutedTo   string    `json:"routed_to"`
	Model      string    `json:"model"`
	WinRate    float64   `json:"win_rate"`
	Threshold  float64   `json:"threshold"`
	PromptHash string    `json:"prompt_hash"`
	LatencyMs  int64     `json:"latency_ms"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

type StatsEvent struct {
	Routers   map[string]RouterCounters `json:"routers"`
	Timestamp time.Time                 `json:"timestamp"`
}

type RouterCounters struct {
	Strong int64 `json:"strong"`
	Weak   int64 `json:"weak"`
	Failed int64 `json:"failed"`
}

type ErrorReply struct {
	Error string `json:"error"`
}
