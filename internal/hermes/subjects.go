package hermes

const (
	SubjectRouteRequest     = "llmroute.route.request"
	SubjectDecisionWildcard = "llmroute.decision.>"
	SubjectStats            = "llmroute.stats"

	// QueueGroup is shared by every instance answering route requests.
	QueueGroup = "llmroute"

	StreamName   = "LLMROUTE_EVENTS"
	StreamMaxAge = "168h" // 7 days
)

func SubjectDecision(router string) string { return "llmroute.decision." + router }
