// Package notify sends fire-and-forget HTTP notifications for workflow
// events. The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"net/http"
	"strings"
	"time"
)

// Notifier posts plain-text HTTP notifications for workflow outcomes.
type Notifier struct {
	url        string
	title      string
	onComplete bool
	onError    bool
	client     *http.Client
}

// New creates a Notifier. projectName is used as the X-Title header; if
// empty, "agentos" is used instead. An empty URL disables all posts.
func New(notifURL, projectName string, onComplete, onError bool) *Notifier {
	title := "agentos"
	if projectName != "" {
		title = projectName
	}
	return &Notifier{
		url:        notifURL,
		title:      title,
		onComplete: onComplete,
		onError:    onError,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Complete fires an asynchronous POST for a successful workflow, if
// completion notifications are enabled.
func (n *Notifier) Complete(message string) {
	if n.url == "" || !n.onComplete {
		return
	}
	go n.post(message)
}

// Error fires an asynchronous POST for a failed workflow, if error
// notifications are enabled.
func (n *Notifier) Error(message string) {
	if n.url == "" || !n.onError {
		return
	}
	go n.post(message)
}

// post sends a plain-text POST to the configured URL. Errors are silently
// discarded so notification failures never interrupt the workflow.
func (n *Notifier) post(message string) {
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
