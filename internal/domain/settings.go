package domain

// TicketingSettings holds per-community ticketing configuration.
type TicketingSettings struct {
	CommunityID string

	// DefaultThreadChannel hosts tickets created without an explicit
	// target channel.
	DefaultThreadChannel string

	// TicketingChannels are the channels enabled for ticket creation.
	TicketingChannels []string

	// AlertRoles and AlertUsers are mentioned on ticket creation and on
	// overdue escalation when the ticket has no assignee.
	AlertRoles []string
	AlertUsers []string

	// AlertChannel, when set, mirrors each ticket's status via an origin
	// message. Empty means no mirroring.
	AlertChannel string
}

// ChannelEnabled reports whether the channel accepts ticket creation.
func (s *TicketingSettings) ChannelEnabled(channelID string) bool {
	if channelID == s.DefaultThreadChannel {
		return true
	}
	for _, id := range s.TicketingChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

// HasAlertTargets reports whether any role or user is configured for alerts.
func (s *TicketingSettings) HasAlertTargets() bool {
	return len(s.AlertRoles) > 0 || len(s.AlertUsers) > 0
}
