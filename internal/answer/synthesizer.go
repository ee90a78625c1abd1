package answer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

// Fixed replies for questions the corpus cannot answer.
const (
	// NoMatchMessage is returned when retrieval found nothing usable.
	NoMatchMessage = "I couldn't find relevant information in the uploaded documents to answer your question. Please ensure your question relates to the document content, or try rephrasing it. I'm available to help with other questions."
	// EmptyAnswerMessage is returned when synthesis produced nothing
	// meaningful from retrieved context.
	EmptyAnswerMessage = "The information needed to answer your question is not available in the uploaded documents. Please try asking a different question related to the document content, or ensure the relevant documents are uploaded."
)

const (
	extractMaxSentences = 3

	// LLM answers from document context may run longer than chat replies.
	maxDocumentAnswerChars = 800
	maxChatAnswerChars     = 400
)

// Config holds synthesis token budgets.
type Config struct {
	// MaxTokensDocument caps completions that answer from retrieved context.
	MaxTokensDocument int
	// MaxTokensGeneral caps completions for chat without retrieval.
	MaxTokensGeneral int
}

// Synthesizer produces answers from retrieved context. When no LLM client
// is configured it falls back to rule-based sentence extraction.
type Synthesizer struct {
	llm    llm.Client
	cfg    Config
	logger *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer creates a synthesizer. client may be nil, in which case
// every answer comes from the extractive fallback.
func NewSynthesizer(client llm.Client, cfg Config, opts ...Option) *Synthesizer {
	if cfg.MaxTokensDocument <= 0 {
		cfg.MaxTokensDocument = 400
	}
	if cfg.MaxTokensGeneral <= 0 {
		cfg.MaxTokensGeneral = 200
	}
	s := &Synthesizer{
		llm:    client,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LLMModel reports the configured completion model, or "" when answers are
// extractive only.
func (s *Synthesizer) LLMModel() string {
	if s.llm == nil {
		return ""
	}
	return s.llm.ModelName()
}

// FromContext answers the question from retrieved context. The LLM answer
// is preferred; when the call fails or no client is configured, the
// extractive answer is returned instead.
func (s *Synthesizer) FromContext(ctx context.Context, question, contextText string, mode models.ContextMode) string {
	if strings.TrimSpace(contextText) == "" {
		return NoMatchMessage
	}

	local := Extract(question, contextText, extractMaxSentences)

	if s.llm != nil {
		generated, err := s.llm.Complete(ctx, contextPrompt(question, contextText, mode), s.cfg.MaxTokensDocument)
		if err != nil {
			s.logger.Warn("completion failed, using extractive answer", zap.Error(err))
		} else if generated != "" {
			return truncateLongAnswer(Clean(generated, question))
		}
	}

	if local == "" {
		return NoMatchMessage
	}
	return local
}

// WithoutContext answers chat-style questions that have no document
// context, via the LLM when configured and canned replies otherwise.
func (s *Synthesizer) WithoutContext(ctx context.Context, question string, mode models.ContextMode) string {
	if s.llm != nil {
		generated, err := s.llm.Complete(ctx, chatPrompt(question, mode), s.cfg.MaxTokensGeneral)
		if err != nil {
			s.logger.Warn("completion failed, using rule-based reply", zap.Error(err))
		} else if generated != "" {
			text := Clean(generated, question)
			return truncateAtSentence(text, maxChatAnswerChars, maxChatAnswerChars/2)
		}
	}
	return ruleBasedReply(question, mode)
}

// truncateLongAnswer cuts a document answer at the best available boundary:
// a late period, then a late newline, then a late comma.
func truncateLongAnswer(text string) string {
	if len(text) <= maxDocumentAnswerChars {
		return text
	}
	truncated := text[:maxDocumentAnswerChars]
	if dot := strings.LastIndex(truncated, "."); dot > 400 {
		return truncated[:dot+1]
	}
	if nl := strings.LastIndex(truncated, "\n"); nl > 500 {
		return truncated[:nl]
	}
	if comma := strings.LastIndex(truncated, ","); comma > 600 {
		return truncated[:comma] + "."
	}
	return strings.TrimRight(truncated, " \t\n") + "..."
}

var greetingWords = []string{"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening", "greet"}
var farewellWords = []string{"thank", "thanks", "appreciate", "grateful", "bye", "goodbye", "see you", "farewell"}

// ruleBasedReply covers chat questions when no LLM is configured.
func ruleBasedReply(question string, mode models.ContextMode) string {
	q := strings.ToLower(strings.TrimSpace(question))
	containsAny := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}

	if mode != models.ContextGeneral {
		return "Thank you for reaching out. I'm available to assist you with any information you need."
	}

	isGreeting := containsAny(greetingWords) && len(strings.Fields(q)) <= 5
	switch {
	case isGreeting:
		return "Hello! Welcome to the organization. I'm here to assist you with any questions about our policies, procedures, employee benefits, onboarding, or general information. I'm available to help you with any information you need."
	case containsAny(farewellWords):
		return "You're very welcome! I'm glad I could assist you. If you have any other questions, please don't hesitate to ask. Have a wonderful day!"
	case containsAny([]string{"help", "what can you do", "capabilities"}):
		return "I'd be happy to help! I can assist you with organization information, company policies, employee benefits, onboarding procedures, and document search. I'm available to provide information on any of these topics."
	case containsAny([]string{"new", "intern", "employee", "first day", "onboarding", "start"}):
		return "Welcome to the organization! I'm here to help you get started. I can provide information about our policies, procedures, benefits, and what to expect during your onboarding. I'm ready to assist with any specific information you need."
	case containsAny([]string{"policy", "policies", "rules", "guidelines"}):
		return "I'd be happy to help you understand our organizational policies and guidelines. Please feel free to ask a specific question about any policy, or I can guide you to the relevant policy documents."
	case containsAny([]string{"benefit", "benefits", "leave", "vacation", "sick"}):
		return "I can help you understand our employee benefits and leave policies. Please ask a specific question about benefits, or I can direct you to our employee handbook for detailed information."
	case containsAny([]string{"who", "what", "where", "when", "how"}):
		return "I'd be pleased to help you with that. To provide you with the most accurate information, please provide a bit more context about what you're looking for."
	}
	return "Thank you for your question. I'm here to assist you with any questions about the organization, policies, and procedures. Please provide a bit more detail so I can help you more effectively."
}
