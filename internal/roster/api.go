package roster

import "github.com/bwmarrin/snowflake"

// Occupant is one member currently connected to a voice channel.
type Occupant struct {
	MemberID    snowflake.ID `json:"member_id"`
	MemberName  string       `json:"member_name"`
	Bot         bool         `json:"bot"`
	ChannelID   snowflake.ID `json:"channel_id"`
	ChannelName string       `json:"channel_name"`
}

// ApiResponse models the top-level structure of the upstream roster response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int        `json:"page"`
		PageSize int        `json:"pageSize"`
		Total    int        `json:"total"`
		Items    []Occupant `json:"items"`
	} `json:"data"`
}
