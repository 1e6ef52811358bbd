// Package metrics exposes Prometheus instrumentation for the relay.
package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuestionsPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitl_questions_posted_total",
		Help: "The total number of questions accepted.",
	})
	QuestionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitl_question_conflicts_total",
		Help: "The total number of question posts rejected because one was already pending.",
	})
	RepliesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hitl_replies_recorded_total",
		Help: "The total number of replies recorded, by reply type.",
	}, []string{"type"})
	WebhookMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hitl_webhook_messages_total",
		Help: "The total number of inbound webhook messages, by handling outcome.",
	}, []string{"outcome"})
	LinkCodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitl_link_codes_issued_total",
		Help: "The total number of link codes issued to unmapped identities.",
	})
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitl_delivery_failures_total",
		Help: "The total number of outbound chat deliveries that gave up after retries.",
	})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
