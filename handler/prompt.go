package handler

//nolint:lll
const semanticChunkingPrompt = `---Goal---
Divide the document below into sections that each cover one coherent topic.

---Steps---
1. Read the whole document.
2. Decide where each new topic begins. Prefer natural boundaries such as headings, paragraph breaks, or shifts in subject.
3. For every section report the byte offset in the document where it starts and a one-sentence summary.
4. Format your output as a VALID JSON object with the following structure:
{
  "sections": [
    {
      "section_summary": string,
      "start_position": number (byte offset where the section starts)
    }
  ]
}

5. The JSON output MUST be valid JSON with no explanation text before or after it. Do not include any markdown formatting like backticks.

######################
---Document---
######################
{{.Content}}

Output:
`
