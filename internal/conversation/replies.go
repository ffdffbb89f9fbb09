package conversation

// FallbackReply отдаётся для бесед без заготовленного ответа.
const FallbackReply = "I understand. Can you provide more context or specific questions about your needs?"

// ReplyFunc выбирает текст ответа ассистента по беседе и исходному тексту пользователя.
type ReplyFunc func(conversationID, text string) string

var cannedReplies = map[string]string{
	"1": "That's a great point about sustainability. Based on your input, I'd suggest looking into renewable energy solutions for your company. Solar panels or wind turbines could significantly reduce your carbon footprint. Would you like more specific recommendations?",
	"2": "Interesting question about the market. Given the current trends, renewable energy stocks are showing strong growth potential. Companies focusing on solar and wind technologies are particularly promising. Would you like a more detailed analysis of specific companies?",
	"3": "Your focus on energy efficiency is commendable. Have you considered implementing IoT devices to monitor and optimize energy usage in real-time? This could lead to significant improvements in your product's efficiency. I'd be happy to elaborate on this or explore other innovative solutions.",
}

// Reply — чистая функция: заготовленный абзац для известной беседы, иначе FallbackReply.
// Текст пользователя на выбор не влияет.
func Reply(conversationID, _ string) string {
	if r, ok := cannedReplies[conversationID]; ok {
		return r
	}
	return FallbackReply
}
