package model

// KnowledgeEntry is a piece of expert advice used to enrich oracle prompts.
type KnowledgeEntry struct {
	Topic            string `json:"topic"`
	Content          string `json:"content"`
	SolutionTemplate string `json:"solution_template"`
}
