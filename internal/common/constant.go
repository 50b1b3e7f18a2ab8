package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Remote collection names, one per entry kind.
const (
	CollectionDiary    = "diary_entries"
	CollectionMood     = "mood_entries"
	CollectionActivity = "activity_entries"
)

// OwnerField is the document field naming the owning user.
const OwnerField = "userId"

// Collections lists every collection the remote store accepts.
var Collections = []string{CollectionDiary, CollectionMood, CollectionActivity}
