package websocket

// Message defines the structure for websocket messages.
type Message struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

// Actions pushed to the front-end.
const (
	ActionTasksUpdated    = "tasks.updated"
	ActionOrderingUpdated = "ordering.updated"
	ActionQueueUpdated    = "queue.updated"
	ActionEnabledChanged  = "enabled.changed"
	ActionError           = "error"
)
