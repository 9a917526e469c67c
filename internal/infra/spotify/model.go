package spotify

// Wire projections of the Spotify Web API responses. These are transient:
// they are only used while assembling a deny-list snapshot and are never
// persisted (persistence uses the versioned structs in internal/infra/store).

// pagingObject mirrors Spotify's paging wrapper. Next is empty on the last
// page (the API sends null).
type pagingObject[T any] struct {
	Limit  int    `json:"limit"`
	Next   string `json:"next"`
	Offset int    `json:"offset"`
	Total  int    `json:"total"`
	Items  []T    `json:"items"`
}

// playlistSummary is one entry of the /me/playlists listing.
type playlistSummary struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Href        string `json:"href"`
	SnapshotID  string `json:"snapshot_id"`
	Tracks      struct {
		Href  string `json:"href"`
		Total int    `json:"total"`
	} `json:"tracks"`
}

// playlistDetail is the field-projected single-playlist response, carrying
// the first page of its track listing inline.
type playlistDetail struct {
	ID          string                          `json:"id"`
	URI         string                          `json:"uri"`
	Name        string                          `json:"name"`
	Description string                          `json:"description"`
	Href        string                          `json:"href"`
	SnapshotID  string                          `json:"snapshot_id"`
	Tracks      pagingObject[playlistTrackItem] `json:"tracks"`
}

// playlistTrackItem is one entry of a playlist's track listing. The nested
// object is either a track or a podcast episode, discriminated by Type.
type playlistTrackItem struct {
	IsLocal bool `json:"is_local"`
	Track   struct {
		Type         string `json:"type"` // "track" or "episode"
		IsLocal      bool   `json:"is_local"`
		URI          string `json:"uri"`
		ExternalURLs struct {
			Spotify string `json:"spotify"`
		} `json:"external_urls"`
	} `json:"track"`
}

// tokenResponse is the token endpoint's response shape, for both the
// authorization-code exchange and the refresh grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}
