package handler

import (
	"fmt"

	"tg-modbot/internal/models"
)

const (
	msgGroupOnly         = "Commands only work on group chats."
	msgReplyRequired     = "Please make sure to reply to the offending message when making request to delete."
	msgPollAlreadyExists = "There is already a poll in place for the offending message"
	msgAdminOnly         = "Only chat administrators allowed to set configs"
	msgSupport           = "Post any issues with this bot on its issue tracker, and feel free to contribute " +
		"to the source code with a pull request."
)

func configCommandMessage(username string) string {
	return fmt.Sprintf("Get configs by typing '/getconfig@%s'.\n"+
		"Set your own threshold by typing '/setthreshold@%s <number>'\n"+
		"Set your own expiry time by typing '/setexpiry@%s <number>'", username, username, username)
}

func startMessage(username string) string {
	return fmt.Sprintf("I am a Bot that moderates chat groups. Just add me into a group chat and "+
		"give me permissions to send polls and delete messages. Summon me in the "+
		"group chat using '/delete@%s' and reply to the message in question. "+
		"I will then send a poll to collect other members' opinions. If the number of votes "+
		"in favour of deleting the message >= certain threshold, I will close the poll and delete the message in question. "+
		"Polls are only active for the expiry time the group admin sets, and requests will need to be resent.\n",
		username) + configCommandMessage(username)
}

func configMessage(cfg *models.ChatConfig) string {
	return fmt.Sprintf("Current Group Configs:\n\tThreshold:%d\n\tExpiry:%d", cfg.Threshold, cfg.ExpirySeconds)
}

// sent when a command arrives from a chat with no stored configuration
func initialiseConfigMessage(cfg *models.ChatConfig, username string) string {
	return "This chat is not within my database, initialising database with the following config. \n" +
		configMessage(cfg) + "\n" + configCommandMessage(username)
}

func groupFirstMessage(cfg *models.ChatConfig, username string) string {
	return fmt.Sprintf("%s\n\nThe default threshold is half the number of members in this group (%d), "+
		"and default expiration time is %d seconds before poll times out.\n",
		startMessage(username), cfg.Threshold, cfg.ExpirySeconds) + configCommandMessage(username)
}
