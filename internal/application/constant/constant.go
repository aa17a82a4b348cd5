package constant

// Shared slog attribute keys.
const (
	Error    = "error"
	ClientID = "client_id"
	Room     = "room"
	Target   = "target"
)
