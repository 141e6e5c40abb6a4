package mocks

import (
	"sync"

	"treeview-ai/application/ports"
	"treeview-ai/domain/core/entities"
)

// RecordingView keeps everything the engine asked it to display.
type RecordingView struct {
	mu            sync.Mutex
	frames        []ports.Frame
	fits          int
	notifications []ports.Notification
	messages      []entities.Message
}

func (v *RecordingView) Render(frame ports.Frame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames = append(v.frames, frame)
}

func (v *RecordingView) FitView(string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fits++
}

func (v *RecordingView) Notify(_ string, n ports.Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notifications = append(v.notifications, n)
}

func (v *RecordingView) AppendMessage(_ string, m entities.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, m)
}

// LastFrame returns the most recent frame, if any.
func (v *RecordingView) LastFrame() (ports.Frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.frames) == 0 {
		return ports.Frame{}, false
	}
	return v.frames[len(v.frames)-1], true
}

func (v *RecordingView) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.frames)
}

func (v *RecordingView) Fits() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fits
}

func (v *RecordingView) Notifications() []ports.Notification {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]ports.Notification(nil), v.notifications...)
}

func (v *RecordingView) Messages() []entities.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]entities.Message(nil), v.messages...)
}
