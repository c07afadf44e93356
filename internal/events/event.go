package events

import "time"

// Type names an engine event.
type Type string

const (
	LoadStart        Type = "loadstart"
	LoadComplete     Type = "loadcomplete"
	DownloadStart    Type = "downloadstart"
	DownloadProgress Type = "downloadprogress"
	DownloadComplete Type = "downloadcomplete"
)

// Event is one engine notification. Only the fields relevant to Type are set.
type Event struct {
	Type     Type      `json:"event"`
	Time     time.Time `json:"time"`
	ShareID  string    `json:"shareID,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Progress int64     `json:"progress,omitempty"`
	Size     int64     `json:"size,omitempty"`
	// Speed is the instantaneous rate in bytes per second, when the UI shows one.
	Speed *float64 `json:"speed,omitempty"`
	// AverageSpeed is set on downloadcomplete once a start was observed.
	AverageSpeed *float64 `json:"averageSpeed,omitempty"`
}
