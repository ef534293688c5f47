package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	Operation string
	Caller    string
	Limit     int
	Offset    int
}
