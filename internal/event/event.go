package event

type Type string

const (
	TypeNewPost       Type = "new_post"
	TypePostDeleted   Type = "post_deleted"
	TypePostRestored  Type = "post_restored"
	TypeImageUploaded Type = "image_uploaded"
)

// Event is what the bus carries. Actor is the username that triggered the
// event; the notification hub uses it to skip the author on fan-out.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"event"`
	Actor     string `json:"-"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
