package realtime

// Channel naming. One logical subscription per concern: a pin layer, a
// user's messages, a user's friend edges, a user's friend requests.
// Row changes touching two users are published to both user channels.

func PinChannel(layer string) string {
	return "pins:layer:" + layer
}

func MessageChannel(userID string) string {
	return "messages:user:" + userID
}

func FriendChannel(userID string) string {
	return "friends:user:" + userID
}

func RequestChannel(userID string) string {
	return "friend_requests:user:" + userID
}
