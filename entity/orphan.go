package entity

// OrphanedObject describes an object-store entry that has no metadata record.
type OrphanedObject struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}
