package policy

// NewDiscordProfile returns the Discord desktop profile.
func NewDiscordProfile() AppProfile {
	return NewProfile("discord", "Discord",
		[]string{"com.hnc.Discord", "discord"},
		[]string{"Discord", "Discord Helper"},
	)
}

// NewSlackProfile returns the Slack desktop profile.
func NewSlackProfile() AppProfile {
	return NewProfile("slack", "Slack",
		[]string{"com.tinyspeck.slackmacgap", "slack"},
		[]string{"Slack", "Slack Helper"},
	)
}
