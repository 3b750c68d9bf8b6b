package client

// Player identifies one player connected to the server.
type Player struct {
	Name       string `json:"name"`
	ID         string `json:"id"`
	Controller string `json:"controller,omitempty"`
	State      string `json:"state,omitempty"`
}

// StatusPlayer is one row of the player listing in a ServerStatus.
type StatusPlayer struct {
	Name    string   `json:"name"`
	ID      string   `json:"id"`
	Address string   `json:"address,omitempty"`
	Ping    int      `json:"ping"`
	Time    int64    `json:"time"`
	Roles   []string `json:"roles,omitempty"`
}

// ServerStatus reports the live state of the game server as the host sees
// it.
type ServerStatus struct {
	ServerName  string         `json:"serverName"`
	Description string         `json:"description,omitempty"`
	Bricks      int            `json:"bricks"`
	Components  int            `json:"components"`
	Time        int64          `json:"time"`
	Players     []StatusPlayer `json:"players,omitempty"`
}
