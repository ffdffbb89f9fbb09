package conversation

import (
	"time"

	"github.com/iseevalue/chat/internal/model"
)

type seedMessage struct {
	sender  model.Sender
	content string
	hour    int
	minute  int
	status  model.MessageStatus
}

type seedConversation struct {
	meta     model.Conversation
	unread   int
	messages []seedMessage
}

var defaultSeed = []seedConversation{
	{
		meta: model.Conversation{ID: "1", Title: "Sustainability Advisor", AgentName: "EcoBot", Category: model.ChatCategoryRecent},
		messages: []seedMessage{
			{model.SenderAssistant, "Hello! I'm EcoBot, your sustainability advisor. How can I help you today?", 10, 0, model.MessageStatusRead},
			{model.SenderUser, "Hi EcoBot! I'm looking for ways to reduce our company's carbon footprint.", 10, 5, model.MessageStatusRead},
			{model.SenderAssistant, "Great initiative! Here are some eco-friendly alternatives to consider: 1. Switch to renewable energy sources, 2. Implement a comprehensive recycling program, 3. Encourage remote work to reduce commuting emissions. Would you like more details on any of these?", 10, 7, model.MessageStatusRead},
		},
	},
	{
		meta:   model.Conversation{ID: "2", Title: "Market Analyst", AgentName: "MarketMind", Category: model.ChatCategoryRecent},
		unread: 2,
		messages: []seedMessage{
			{model.SenderAssistant, "Welcome back! I'm MarketMind, your market analysis AI. What would you like to know about current market trends?", 14, 0, model.MessageStatusRead},
			{model.SenderUser, "Hi MarketMind. Can you give me an overview of the renewable energy market?", 14, 5, model.MessageStatusRead},
			{model.SenderAssistant, "The renewable energy market is experiencing rapid growth. Solar and wind power are leading the charge, with decreasing costs and increasing efficiency. Government incentives and growing environmental awareness are driving adoption. Would you like a more detailed analysis of a specific sector?", 14, 8, model.MessageStatusDelivered},
		},
	},
	{
		meta: model.Conversation{ID: "3", Title: "Innovation Assistant", AgentName: "InnovatAI", Category: model.ChatCategoryArchived},
		messages: []seedMessage{
			{model.SenderAssistant, "Greetings! I'm InnovatAI, your innovation assistant. Ready to brainstorm some groundbreaking ideas?", 15, 0, model.MessageStatusRead},
			{model.SenderUser, "Hello InnovatAI. We're looking for innovative ways to improve our product's energy efficiency.", 15, 5, model.MessageStatusRead},
			{model.SenderAssistant, "Excellent focus! Have you considered implementing smart power management systems? These can significantly reduce energy consumption by optimizing usage patterns. Another avenue to explore is the use of advanced materials that enhance insulation and heat dissipation. Would you like to dive deeper into either of these concepts?", 15, 8, model.MessageStatusRead},
		},
	},
}

// SeedDefaults загружает три стартовые беседы (EcoBot, MarketMind, InnovatAI).
// Время сообщений берётся на дату часов планировщика.
func (s *Store) SeedDefaults() error {
	now := s.sched.Now()
	for _, sc := range defaultSeed {
		msgs := make([]model.Message, 0, len(sc.messages))
		for i, sm := range sc.messages {
			at := time.Date(now.Year(), now.Month(), now.Day(), sm.hour, sm.minute, 0, 0, now.Location())
			msgs = append(msgs, model.Message{
				ID:        i + 1,
				Sender:    sm.sender,
				Content:   sm.content,
				CreatedAt: at,
				Timestamp: at.Format(model.TimestampLayout),
				Status:    sm.status,
			})
		}
		if err := s.Add(sc.meta, msgs, sc.unread); err != nil {
			return err
		}
	}
	return nil
}
