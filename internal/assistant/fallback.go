package assistant

import (
	"regexp"
	"strings"
)

type cannedReply struct {
	pattern *regexp.Regexp
	text    string
}

var cannedReplies = []cannedReply{
	{regexp.MustCompile(`\b(hi|hello|hey|greetings)\b`), "Hello! I'm Mizo, Vivek's AI Assistant. How can I help you today? 🤖"},
	{regexp.MustCompile(`\b(who are you|what are you|your name|introduce)\b`), "I'm Mizo, an AI Assistant for Groot1! I'm here to chat and help you out. 🤖"},
	{regexp.MustCompile(`\b(joke|funny|laugh)\b`), "Why did the developer go broke? Because he used up all his cache! 😄"},
	{regexp.MustCompile(`\b(bye|goodbye|see you)\b`), "Goodbye! Have a great day! 👋"},
}

const defaultReply = "That's interesting! Tell me more about what you'd like to know. I'm here to help! 🤖"

// FallbackReply picks a canned reply by keyword. It never returns an empty
// string.
func FallbackReply(message string) string {
	msg := strings.ToLower(message)
	for _, r := range cannedReplies {
		if r.pattern.MatchString(msg) {
			return r.text
		}
	}
	return defaultReply
}
