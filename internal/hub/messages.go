package hub

import "NetProfiler/internal/model"

// Server to client message types.
const (
	msgInitialData     = "initial_data"
	msgProfileUpdate   = "profile_update"
	msgStats           = "stats"
	msgProfiles        = "profiles"
	msgProfilesCleared = "profiles_cleared"
	msgPong            = "pong"
	msgError           = "error"
)

// Client to server request types.
const (
	reqGetStats      = "get_stats"
	reqGetProfiles   = "get_profiles"
	reqClearProfiles = "clear_profiles"
	reqPing          = "ping"
)

const updateTypeRemoved = "profile_removed"

// serverMessage is the envelope for everything pushed down the live
// channel. Unused fields are omitted per message type.
type serverMessage struct {
	Type     string           `json:"type"`
	Profiles []*model.Profile `json:"profiles,omitempty"`
	Stats    *model.Stats     `json:"stats,omitempty"`
	Update   *profileUpdate   `json:"update,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// profileUpdate carries one profile table delta. Profile is set for
// upserts; UpdateType marks removals.
type profileUpdate struct {
	Key        string         `json:"key"`
	Profile    *model.Profile `json:"profile,omitempty"`
	UpdateType string         `json:"update_type,omitempty"`
}

// clientRequest is a message received from a subscriber.
type clientRequest struct {
	Type string `json:"type"`
}
