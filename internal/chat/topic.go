// Package chat is the conversational food assistant: it classifies each message into a
// topic, personalises the system prompt with the user's profile and keeps per-session
// history so follow-up questions have context.
package chat

import "regexp"

// Topic selects the assistant persona for a message.
type Topic string

const (
	TopicFoodWaste     Topic = "food_waste"
	TopicNutrition     Topic = "nutrition"
	TopicBudget        Topic = "budget_planning"
	TopicLeftovers     Topic = "leftovers"
	TopicFoodSharing   Topic = "food_sharing"
	TopicEnvironmental Topic = "environmental"
	TopicGeneral       Topic = "general"
)

// Rules are checked in order; the first match wins.
var topicRules = []struct {
	topic   Topic
	pattern *regexp.Regexp
}{
	{TopicFoodWaste, regexp.MustCompile(`(?i)waste|throw|spoil|expire|compost`)},
	{TopicNutrition, regexp.MustCompile(`(?i)nutrition|healthy|vitamin|protein|calorie|diet`)},
	{TopicBudget, regexp.MustCompile(`(?i)budget|cheap|afford|cost|save money|expensive`)},
	{TopicLeftovers, regexp.MustCompile(`(?i)leftover|remain|extra|use up|creative`)},
	{TopicFoodSharing, regexp.MustCompile(`(?i)share|donate|community|neighbor|food bank`)},
	{TopicEnvironmental, regexp.MustCompile(`(?i)environment|carbon|climate|sustainable|eco`)},
}

// DetectTopic classifies a user message by keyword.
func DetectTopic(message string) Topic {
	for _, rule := range topicRules {
		if rule.pattern.MatchString(message) {
			return rule.topic
		}
	}
	return TopicGeneral
}
