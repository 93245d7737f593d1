package dto

type ConfirmMeetingResponse struct {
	BookingID     string `json:"booking_id"`
	Status        string `json:"status"`
	MeetingStatus string `json:"meeting_status"`
	MeetingLink   string `json:"meeting_link,omitempty"`
	EventID       string `json:"event_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}
