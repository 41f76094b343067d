package moderation

import "fmt"

const (
	msgExpiredStatus   = "Poll expired. Stopping poll and counting votes..."
	msgThresholdStatus = "Threshold reached. Stopping poll and counting votes..."
	msgDeleted         = "Offending message has been deleted."
	msgNotReached      = "Threshold votes not reached before poll expiry."
	msgCheckPermission = "\nPlease check if I have permission to delete group messages."
)

func pollQuestion(expirySeconds, threshold int) string {
	return fmt.Sprintf("Poll to delete the message above. This poll will last for %d seconds, "+
		"if >=%d of the group members vote to delete within %d seconds, the replied message shall be deleted.",
		expirySeconds, threshold, expirySeconds)
}

func statusText(reason Reason) string {
	if reason == ThresholdReached {
		return msgThresholdStatus
	}
	return msgExpiredStatus
}
