package notify

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"
)

// ToastChannel delivers a Windows toast notification, adapted from the
// teacher's ToastNotifier. A no-op (IsSupported() == false) on every
// other platform, the same degrade-gracefully pattern the teacher uses.
type ToastChannel struct {
	appID        string
	dashboardURL string
}

// NewToastChannel constructs a ToastChannel.
func NewToastChannel(appID, dashboardURL string) *ToastChannel {
	if appID == "" {
		appID = "memengine"
	}
	if dashboardURL == "" {
		dashboardURL = "http://localhost:8080"
	}
	return &ToastChannel{appID: appID, dashboardURL: dashboardURL}
}

// Notify pushes a Windows toast for the alert.
func (t *ToastChannel) Notify(a Alert) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   string(a.Severity),
		Message: a.Message,
		Audio:   toast.Default,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Dashboard", Arguments: t.dashboardURL},
		},
	}
	return notification.Push()
}

// IsSupported reports whether toast notifications are available.
func (t *ToastChannel) IsSupported() bool {
	return runtime.GOOS == "windows"
}
