package docsum

// FieldDescriptor describes one input or output field of the component.
type FieldDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Descriptor is the metadata a host uses to list and wire the summarizer component.
type Descriptor struct {
	Title       string            `json:"title"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Inputs      []FieldDescriptor `json:"inputs"`
	Outputs     []FieldDescriptor `json:"outputs"`
}

// Describe returns the component descriptor of the Summarizer.
func Describe() Descriptor {
	return Descriptor{
		Title:       "Document Summarizer",
		Category:    "document_processing",
		Description: "Summarizes large documents based on a query.",
		Inputs: []FieldDescriptor{
			{Name: "document", Type: "string", Description: "The document to summarize.", Required: true},
			{Name: "query", Type: "string", Description: "The query to answer from the document.", Required: true},
		},
		Outputs: []FieldDescriptor{
			{Name: "answer", Type: "string", Description: "The answer to the query."},
		},
	}
}
