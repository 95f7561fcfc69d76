package drive

// Answer is a reply to an interactive conflict prompt.
type Answer int

const (
	AnswerYes Answer = iota
	AnswerNo
	AnswerYesAll
	AnswerNoAll
)

// Asker poses interactive questions. Defined here, at the consumer, so the
// conflict policies depend on the contract rather than on a terminal
// implementation; internal/prompt provides the real one.
type Asker interface {
	// Ask poses a yes/no question.
	Ask(msg string) (bool, error)
	// AskAll poses a yes/no question with "for all remaining" variants.
	AskAll(msg string) (Answer, error)
}
