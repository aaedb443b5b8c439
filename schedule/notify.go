/*
notify.go - Fire-and-forget notification dispatch port

PURPOSE:
  After a successful commit (leave decision, shift change) the engine
  tells an external collaborator so workers get notified. Dispatch is
  best-effort: implementations must not block the caller, and failures
  are logged, never propagated into the parent transition.
*/
package schedule

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// ShiftChangeType describes what happened to a user's relation to a shift.
type ShiftChangeType string

const (
	ShiftChangeProposed ShiftChangeType = "proposed"
	ShiftChangeAssigned ShiftChangeType = "assigned"
	ShiftChangeRemoved  ShiftChangeType = "removed"
)

// Notifier dispatches scheduling events to an external collaborator.
// Calls return immediately; delivery is not guaranteed.
type Notifier interface {
	NotifyLeaveDecision(requestID string)
	NotifyShiftChange(shiftID ShiftID, userID UserID, change ShiftChangeType)
}

// =============================================================================
// LOG NOTIFIER - Default no-transport implementation
// =============================================================================

type LogNotifier struct{}

func (LogNotifier) NotifyLeaveDecision(requestID string) {
	log.Printf("notify: leave decision %s", requestID)
}

func (LogNotifier) NotifyShiftChange(shiftID ShiftID, userID UserID, change ShiftChangeType) {
	log.Printf("notify: shift %s %s for user %s", shiftID, change, userID)
}

// =============================================================================
// WEBHOOK NOTIFIER - Non-blocking HTTP POST to an external endpoint
// =============================================================================

// WebhookNotifier posts JSON events to a configured URL. Each dispatch runs
// in its own goroutine with a bounded timeout; failures are logged.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) NotifyLeaveDecision(requestID string) {
	n.dispatch(map[string]string{
		"event":      "leave_decision",
		"request_id": requestID,
	})
}

func (n *WebhookNotifier) NotifyShiftChange(shiftID ShiftID, userID UserID, change ShiftChangeType) {
	n.dispatch(map[string]string{
		"event":       "shift_change",
		"shift_id":    string(shiftID),
		"user_id":     string(userID),
		"change_type": string(change),
	})
}

func (n *WebhookNotifier) dispatch(payload map[string]string) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: marshal failed: %v", err)
		return
	}
	go func() {
		resp, err := n.Client.Post(n.URL, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("notify: dispatch to %s failed: %v", n.URL, err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("notify: dispatch to %s returned %d", n.URL, resp.StatusCode)
		}
	}()
}
