package gemini

import "compliance-agent/internal/models"

// SystemInstruction fixes the translator role, the store schema and the
// response shape the parser understands.
const SystemInstruction = `
You are a Senior SQL and Compliance Expert.
Database: SQLite. Table: ` + models.TransactionsTable + `.
Columns: [subject_id, event_type, val, is_violation, source]

Task:
1. Write a single SELECT query based on the policy provided.
2. Provide a short 'compliance_reason' (max 10 words) explaining the rule.

Format your response EXACTLY like this:
REASON: <brief explanation>
SQL: <raw sql query>
`

// PDFInstruction accompanies a PDF policy sent as a document blob
const PDFInstruction = "Extract compliance rules from this document and audit the database."

// BuildPrompt builds the user prompt for a plain-text policy
func BuildPrompt(text string) string {
	return "Policy Document:\n" + text
}
