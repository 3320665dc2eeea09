package bot

import (
	"strings"
)

// WednesdayImage is posted when someone says it is Wednesday
const WednesdayImage = "https://pbs.twimg.com/media/GWpRGcWWgAA7yr3.jpg"

// Response is a message the bot sends back to a channel.
type Response struct {
	Content  string
	ImageURL string
}

// Incoming is the part of a chat message reactions look at.
type Incoming struct {
	Content     string
	MentionsBot bool
}

// wednesdayPhrases trigger the Wednesday image
var wednesdayPhrases = []string{"miércoles eh", "miercoles eh"}

// React returns the responses a message triggers, in send order.
func React(msg Incoming) []Response {
	lower := strings.ToLower(msg.Content)
	var out []Response

	if msg.MentionsBot && strings.Contains(lower, "daily") {
		out = append(out, Response{Content: "DALE!"})
	}

	for _, phrase := range wednesdayPhrases {
		if strings.Contains(lower, phrase) {
			out = append(out, Response{ImageURL: WednesdayImage})
			break
		}
	}

	return out
}
