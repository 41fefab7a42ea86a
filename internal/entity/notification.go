package entity

import (
	"time"
)

type Priority string

const (
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
)

type Importance string

const (
	ImportanceDefault Importance = "default"
	ImportanceHigh    Importance = "high"
)

const TapLaunchApp = "launch"

type TapAction struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

type Channel struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Importance Importance `json:"importance"`
}

type Notification struct {
	Slot       int32     `json:"slot"`
	ChannelID  string    `json:"channel_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	SmallIcon  string    `json:"small_icon"`
	Priority   Priority  `json:"priority"`
	AutoCancel bool      `json:"auto_cancel"`
	TapAction  TapAction `json:"tap_action"`
	PostedAt   time.Time `json:"posted_at"`
}
