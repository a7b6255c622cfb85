package constants

// ItemStatus is the canonical status for rows in queue_item.
type ItemStatus string

// Stable values (store these exact strings in DB).
const (
	ItemStatusPending    ItemStatus = "PENDING"    // enqueued, not yet claimed
	ItemStatusProcessing ItemStatus = "PROCESSING" // claimed by a worker
	ItemStatusCompleted  ItemStatus = "COMPLETED"  // extraction succeeded
	ItemStatusFailed     ItemStatus = "FAILED"     // extraction failed or attempts exhausted
)

// ValidTransition reports whether a queue item may move from one status to
// another. Failed to pending is the explicit-retry edge; the caller must also
// check the attempts bound before taking it.
func ValidTransition(from, to ItemStatus) bool {
	switch from {
	case ItemStatusPending:
		return to == ItemStatusProcessing
	case ItemStatusProcessing:
		return to == ItemStatusCompleted || to == ItemStatusFailed
	case ItemStatusFailed:
		return to == ItemStatusPending
	}
	return false
}
