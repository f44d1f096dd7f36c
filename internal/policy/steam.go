package policy

// NewSteamProfile returns the Steam client profile.
// Process names are the known ones on macOS and Linux.
func NewSteamProfile() AppProfile {
	return NewProfile("steam", "Steam",
		[]string{"com.valvesoftware.steam", "steam"},
		[]string{
			"Steam",
			"steam_osx",
			"steamwebhelper",
			"Steam Helper",
		},
	)
}

// NewDota2Profile returns the Dota 2 profile.
func NewDota2Profile() AppProfile {
	return NewProfile("dota2", "Dota 2",
		[]string{"com.valvesoftware.dota2", "dota2"},
		[]string{
			"dota2",
			"dota_osx64",
			"Dota 2",
		},
	)
}
