package docsum

// choiceSelectPromptData contains the data needed to ask the LLM which chunks of a batch
// are relevant to the query. Chunks are numbered from 1 within the batch.
type choiceSelectPromptData struct {
	Chunks []Chunk
	Query  string
}

// answerPromptData contains the data for the question answering and summary prompts.
type answerPromptData struct {
	Context string
	Query   string
}

// refinePromptData contains the data for refining an existing answer with more context.
type refinePromptData struct {
	Context        string
	Query          string
	ExistingAnswer string
}

//nolint:lll
const choiceSelectPrompt = `---Goal---
A numbered list of document excerpts is shown below, followed by a question. Select the excerpts that should be consulted to answer the question and rate how relevant each one is.

---Steps---
1. Read every excerpt and the question.
2. Pick only the excerpts that help answer the question. Leave out irrelevant excerpts entirely.
3. Give each picked excerpt a relevance score from 1 (barely relevant) to 10 (essential).
4. Format your output as a VALID JSON object with the following structure:
{
  "documents": [
    {
      "doc": number (the excerpt number),
      "relevance": number (1-10)
    }
  ]
}
List the documents in order of relevance. The JSON output MUST be valid JSON with no explanation text before or after it.

######################
---Excerpts---
######################
{{- range $i, $chunk := .Chunks}}
Document {{add $i 1}}:
{{$chunk.Content}}
{{end}}
######################
---Question---
######################
{{.Query}}

Output:
`

//nolint:lll
const answerPrompt = `Context information from a document is below.
---------------------
{{.Context}}
---------------------
Using only the context information and no prior knowledge, answer the query.
Query: {{.Query}}
Answer:
`

//nolint:lll
const refinePrompt = `The original query is as follows: {{.Query}}
We have provided an existing answer: {{.ExistingAnswer}}
We have the opportunity to refine the existing answer (only if needed) with some more context below.
------------
{{.Context}}
------------
Given the new context, refine the original answer to better answer the query. If the context isn't useful, return the original answer unchanged.
Refined Answer:
`

//nolint:lll
const summaryPrompt = `Context information from multiple parts of a document is below.
---------------------
{{.Context}}
---------------------
Given the information from those parts and not prior knowledge, answer the query. Keep every detail that matters for the query.
Query: {{.Query}}
Answer:
`
