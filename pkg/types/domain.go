package types

// SessionStatus describes the connected client.
type SessionStatus struct {
	// Session identifier.
	// example: 0f5c2a9e-5d1e-4d7b-9b43-6c1c1a0f3e2d
	ID string `json:"id" example:"0f5c2a9e-5d1e-4d7b-9b43-6c1c1a0f3e2d"`
	// Peer address or device path.
	// example: 192.168.1.20:53122
	Remote string `json:"remote" example:"192.168.1.20:53122"`
	// Session start (unix seconds).
	// example: 1700000000
	StartedUnix int64 `json:"started_unix" example:"1700000000"`
	// Lines waiting for the command worker.
	// example: 0
	CommandQueueLen int `json:"command_queue_len" example:"0"`
	// Replies waiting for the sender.
	// example: 0
	SenderQueueLen int `json:"sender_queue_len" example:"0"`
	// Capacity of each session queue.
	// example: 128
	QueueCapacity int `json:"queue_capacity" example:"128"`
	// Controller command scheduler state.
	Scheduler SchedulerStatus `json:"scheduler"`
}

// SchedulerStatus describes the controller command scheduler.
type SchedulerStatus struct {
	// Whether the scheduler goroutine is running.
	// example: true
	Running bool `json:"running" example:"true"`
	// Phase: stopped, idle, holding or draining.
	// example: holding
	Phase string `json:"phase" example:"holding"`
	// Queued controller commands.
	// example: 4
	Pending int `json:"pending" example:"4"`
}

// SettingsStatus mirrors the configure tunables.
type SettingsStatus struct {
	// example: 50
	ButtonClickSleepMS int64 `json:"button_click_sleep_ms" example:"50"`
	// example: 25
	KeySleepMS int64 `json:"key_sleep_ms" example:"25"`
	// example: 17
	PollRateMS int64 `json:"poll_rate_ms" example:"17"`
	// example: 50
	FingerDiameter uint32 `json:"finger_diameter" example:"50"`
	// Virtual controller model.
	// example: 3
	DeviceType uint32 `json:"device_type" example:"3"`
	// Legacy hex replies and version string.
	// example: true
	BackwardsCompat bool `json:"backwards_compat" example:"true"`
	// Debug logging.
	// example: false
	Verbose bool `json:"verbose" example:"false"`
}
